package namespace_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/namespace"
)

func TestDecorateWithoutPrefix(t *testing.T) {
	ns := namespace.New("")
	decorated, err := ns.Decorate("a")
	require.NoError(t, err)
	require.Equal(t, "a", decorated)
}

func TestDecorateWithPrefix(t *testing.T) {
	ns := namespace.New("tenant-1")
	decorated, err := ns.Decorate("a")
	require.NoError(t, err)
	require.Equal(t, "tenant-1:a", decorated)
}

func TestWithGroupAddsSegment(t *testing.T) {
	ns := namespace.New("tenant-1").WithGroup("jobs")
	decorated, err := ns.Decorate("a")
	require.NoError(t, err)
	require.Equal(t, "tenant-1:jobs:a", decorated)
}

func TestGroupsDoNotCollide(t *testing.T) {
	base := namespace.New("shared")
	g1 := base.WithGroup("a")
	g2 := base.WithGroup("b")

	k1, err := g1.Decorate("key")
	require.NoError(t, err)
	k2, err := g2.Decorate("key")
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestDecorateRejectsEmptyKey(t *testing.T) {
	ns := namespace.New("t")
	_, err := ns.Decorate("")
	require.Error(t, err)
}

func TestDecorateRejectsOverlongKey(t *testing.T) {
	ns := namespace.New("")
	_, err := ns.Decorate(strings.Repeat("a", namespace.MaxKeyLength+1))
	require.Error(t, err)
}

func TestDecorateIsDeterministicAcrossCalls(t *testing.T) {
	ns := namespace.New("t")
	k1, err := ns.Decorate("a")
	require.NoError(t, err)
	k2, err := ns.Decorate("a")
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}
