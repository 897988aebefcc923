package scopestack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DuplicateDeclare_ReturnsDuplicateScopeError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))

	err := r.Declare("app", nil)
	require.Error(t, err)
	var dup *DuplicateScopeError
	require.ErrorAs(t, err, &dup)
}

func TestRegistry_UndeclaredToken_ReturnsScopeNotFoundError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parent("missing")
	require.Error(t, err)
	var notFound *ScopeNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGlobalStack_EnterWrongParent_ReturnsScopeViolationError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))

	g := NewGlobalStack(r)
	_, err := g.Enter("request") // app was never entered first
	require.Error(t, err)
	var violation *ScopeViolationError
	require.ErrorAs(t, err, &violation)
}

func TestGlobalStack_EnterNestsAndExitIsLIFO(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))

	g := NewGlobalStack(r)
	appFrame, err := g.Enter("app")
	require.NoError(t, err)

	reqFrame, err := g.Enter("request")
	require.NoError(t, err)
	assert.Same(t, appFrame, reqFrame.Parent)
	assert.True(t, reqFrame.HasAncestor("app"))

	_, err = g.Exit("app") // request is still on top
	var violation *ScopeViolationError
	require.ErrorAs(t, err, &violation)

	popped, err := g.Exit("request")
	require.NoError(t, err)
	assert.Same(t, reqFrame, popped)

	popped, err = g.Exit("app")
	require.NoError(t, err)
	assert.Same(t, appFrame, popped)
}

func TestFrame_Lookup_WalksParentChain(t *testing.T) {
	parent := NewFrame("app", nil)
	parent.Store("key", "value")

	child := NewFrame("request", parent)
	v, ok := child.Lookup("key")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = parent.Lookup("not-there")
	assert.False(t, ok)
}

func TestFrame_Store_DoesNotLeakUpToParent(t *testing.T) {
	parent := NewFrame("app", nil)
	child := NewFrame("request", parent)
	child.Store("key", "child-value")

	_, ok := parent.Lookup("key")
	assert.False(t, ok, "a child frame's cache entry must not leak to its parent")
}

func TestFrame_Release_RunsTeardownsInReverseOrderExactlyOnce(t *testing.T) {
	f := NewFrame("request", nil)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		f.Track(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, f.Release(context.Background()))
	assert.Equal(t, []int{2, 1, 0}, order)

	require.NoError(t, f.Release(context.Background()))
	assert.Equal(t, []int{2, 1, 0}, order, "a second Release must be a no-op")
}

func TestFrame_Release_AggregatesFailures(t *testing.T) {
	f := NewFrame("request", nil)
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	f.Track(func(context.Context) error { return boom1 })
	f.Track(func(context.Context) error { return boom2 })

	err := f.Release(context.Background())
	require.Error(t, err)
	var agg *TeardownAggregateError
	require.ErrorAs(t, err, &agg)
	assert.ErrorIs(t, err, boom1)
	assert.ErrorIs(t, err, boom2)
}

func TestEnterLocal_DoesNotMutateParentContext(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))

	g := NewGlobalStack(r)
	_, err := g.Enter("app")
	require.NoError(t, err)

	base := context.Background()
	ctx, frame, err := EnterLocal(base, g, r, "request")
	require.NoError(t, err)
	assert.NotNil(t, frame)
	assert.Nil(t, FrameFromContext(base), "entering a local scope must return a new Context, not mutate the original")
	assert.Same(t, frame, FrameFromContext(ctx))
}

func TestEnterLocal_WrongParent_ReturnsScopeViolationError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))
	require.NoError(t, r.Declare("subrequest", "request"))

	g := NewGlobalStack(r)
	_, err := g.Enter("app")
	require.NoError(t, err)

	_, _, err = EnterLocal(context.Background(), g, r, "subrequest") // skips "request"
	require.Error(t, err)
	var violation *ScopeViolationError
	require.ErrorAs(t, err, &violation)
}

func TestEnterLocal_NestsTwiceIndependentlyPerContext(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))

	g := NewGlobalStack(r)
	_, err := g.Enter("app")
	require.NoError(t, err)

	ctxA, frameA, err := EnterLocal(context.Background(), g, r, "request")
	require.NoError(t, err)
	ctxB, frameB, err := EnterLocal(context.Background(), g, r, "request")
	require.NoError(t, err)

	assert.NotSame(t, frameA, frameB)
	assert.Same(t, frameA, FrameFromContext(ctxA))
	assert.Same(t, frameB, FrameFromContext(ctxB))
}

func TestGlobalStack_EnterAlreadyActive_ReturnsDuplicateScopeError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))

	g := NewGlobalStack(r)
	_, err := g.Enter("app")
	require.NoError(t, err)

	_, err = g.Enter("app")
	require.Error(t, err)
	var dup *DuplicateScopeError
	require.ErrorAs(t, err, &dup)
}

func TestEnterLocal_AlreadyActiveOnChain_ReturnsDuplicateScopeError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("request", "app"))

	g := NewGlobalStack(r)
	_, err := g.Enter("app")
	require.NoError(t, err)

	ctx, _, err := EnterLocal(context.Background(), g, r, "request")
	require.NoError(t, err)

	_, _, err = EnterLocal(ctx, g, r, "request")
	require.Error(t, err)
	var dup *DuplicateScopeError
	require.ErrorAs(t, err, &dup)
}

func TestRegistry_DeclareSyncOnly_AllowsSuspensionFalse(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("app", nil))
	require.NoError(t, r.Declare("sync-room", "app", false))

	allows, err := r.AllowsSuspension("sync-room")
	require.NoError(t, err)
	assert.False(t, allows)

	allows, err = r.AllowsSuspension("app")
	require.NoError(t, err)
	assert.True(t, allows, "a scope declared without the variadic flag defaults to permitting suspension")
}

func TestGlobalStack_Enter_CarriesAllowsSuspensionFromRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("sync-room", nil, false))

	g := NewGlobalStack(r)
	frame, err := g.Enter("sync-room")
	require.NoError(t, err)
	assert.False(t, frame.AllowsSuspension)
}
