package session

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCart_MergesQuantities(t *testing.T) {
	s := New()

	s.AddToCart(1, 2)
	s.AddToCart(2, 1)
	s.AddToCart(1, 3)

	assert.Equal(t, []CartLine{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 1},
	}, s.CartLines())
	assert.Equal(t, 6, s.CartCount())
	assert.True(t, s.Dirty())
}

func TestAddToCart_IgnoresNonPositive(t *testing.T) {
	s := New()
	s.AddToCart(1, 0)
	s.AddToCart(1, -2)

	assert.Empty(t, s.CartLines())
	assert.False(t, s.Dirty())
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	s := New()
	s.AddToCart(1, 2)
	s.AddToCart(2, 2)

	s.SetQuantity(1, 0)
	s.SetQuantity(2, 7)

	assert.Equal(t, []CartLine{{ProductID: 2, Quantity: 7}}, s.CartLines())
	assert.Equal(t, 0, s.CartQuantity(1))
}

func TestRemoveFromCart_Idempotent(t *testing.T) {
	s := New()
	s.AddToCart(1, 1)

	s.RemoveFromCart(1)
	s.RemoveFromCart(1)
	s.RemoveFromCart(99)

	assert.Empty(t, s.CartLines())
}

func TestCartLines_ReturnsCopy(t *testing.T) {
	s := New()
	s.AddToCart(1, 1)

	lines := s.CartLines()
	lines[0].Quantity = 50

	assert.Equal(t, 1, s.CartQuantity(1))
}

func TestFlash_ReadOnce(t *testing.T) {
	s := New()
	s.Flash("success", "Saved")
	assert.Equal(t, "Saved", s.PeekFlash("success"))

	msg, ok := s.TakeFlash("success")
	assert.True(t, ok)
	assert.Equal(t, "Saved", msg)

	_, ok = s.TakeFlash("success")
	assert.False(t, ok)
}

func TestTakeFlashes_Empties(t *testing.T) {
	s := New()
	s.Flash("success", "a")
	s.Flash("error", "b")

	assert.Equal(t, map[string]string{"success": "a", "error": "b"}, s.TakeFlashes())
	assert.Empty(t, s.TakeFlashes())
}

func TestSetUser_And_Destroy(t *testing.T) {
	s := New()
	firstID := s.ID()
	s.SetUser(&domain.User{ID: 7, Username: "jane", Email: "jane@example.com", Role: domain.RoleAdmin})
	s.AddToCart(3, 1)

	require.True(t, s.IsLoggedIn())
	ident, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "jane", ident.Username)
	assert.Equal(t, domain.RoleAdmin, ident.Role)

	s.Destroy()

	assert.False(t, s.IsLoggedIn())
	assert.Empty(t, s.CartLines())
	assert.NotEqual(t, firstID, s.ID())
	assert.Equal(t, firstID, s.PreviousID())

	_, ok = s.Identity()
	assert.False(t, ok)
}

func TestDecode_RoundTrip(t *testing.T) {
	s := New()
	s.SetUser(&domain.User{ID: 3, Username: "bob", Email: "bob@example.com", Role: domain.RoleCustomer})
	s.AddToCart(10, 2)
	s.Flash("success", "hi")

	raw, err := s.MarshalJSON()
	require.NoError(t, err)

	got, err := Decode(s.ID(), raw)
	require.NoError(t, err)

	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, int64(3), got.UserID())
	assert.Equal(t, s.CartLines(), got.CartLines())
	assert.False(t, got.Dirty())
	msg, _ := got.TakeFlash("success")
	assert.Equal(t, "hi", msg)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode("x", []byte("{not json"))
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	s := New()
	ctx := NewContext(context.Background(), s)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestRotate_KeepsContents(t *testing.T) {
	s := New()
	firstID := s.ID()
	s.AddToCart(1, 2)

	s.Rotate()

	assert.NotEqual(t, firstID, s.ID())
	assert.Equal(t, firstID, s.PreviousID())
	assert.Equal(t, 2, s.CartQuantity(1))
}

func TestStale(t *testing.T) {
	now := time.Now()

	fresh := New()
	assert.False(t, fresh.Stale(now, time.Hour), "never stored")

	recent := New()
	recent.Touch(now.Add(-10 * time.Minute))
	raw, err := recent.MarshalJSON()
	require.NoError(t, err)
	loaded, err := Decode(recent.ID(), raw)
	require.NoError(t, err)
	assert.False(t, loaded.Stale(now, time.Hour))
	assert.True(t, loaded.Stale(now.Add(25*time.Minute), time.Hour))
	assert.False(t, loaded.Dirty())
}
