// Package session holds per-visitor state: the cart, the logged-in identity
// and one-shot flash messages. State is serialized as JSON at the Store boundary.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Identity struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

type payload struct {
	UserID   int64             `json:"user_id,omitempty"`
	Identity *Identity         `json:"identity,omitempty"`
	Cart     []CartLine        `json:"cart,omitempty"`
	Flash    map[string]string `json:"flash,omitempty"`

	TouchedAt int64 `json:"touched_at,omitempty"`
}

// State is not safe for concurrent use. One request owns it at a time.
type State struct {
	id         string
	previousID string
	data       payload
	dirty      bool
	loaded     bool
}

func New() *State {
	return &State{id: uuid.NewString()}
}

func (s *State) ID() string {
	return s.id
}

// PreviousID is the id the state had before Destroy, empty otherwise.
func (s *State) PreviousID() string {
	return s.previousID
}

func (s *State) Dirty() bool {
	return s.dirty
}

// Touch records when the state was last written to a store.
func (s *State) Touch(now time.Time) {
	s.data.TouchedAt = now.Unix()
}

// Stale reports whether a state read back from a store has gone half its ttl
// without a write. Rewriting it then keeps an active visitor's session alive.
func (s *State) Stale(now time.Time, ttl time.Duration) bool {
	if !s.loaded {
		return false
	}
	return now.Sub(time.Unix(s.data.TouchedAt, 0)) >= ttl/2
}

func (s *State) IsLoggedIn() bool {
	return s.data.UserID != 0
}

func (s *State) UserID() int64 {
	return s.data.UserID
}

func (s *State) Identity() (Identity, bool) {
	if s.data.Identity == nil {
		return Identity{}, false
	}
	return *s.data.Identity, true
}

func (s *State) SetUser(u *domain.User) {
	s.data.UserID = u.ID
	s.data.Identity = &Identity{
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
	s.dirty = true
}

// AddToCart merges quantity into an existing line or appends a new one.
func (s *State) AddToCart(productID int64, quantity int) {
	if quantity <= 0 {
		return
	}
	for i := range s.data.Cart {
		if s.data.Cart[i].ProductID == productID {
			s.data.Cart[i].Quantity += quantity
			s.dirty = true
			return
		}
	}
	s.data.Cart = append(s.data.Cart, CartLine{ProductID: productID, Quantity: quantity})
	s.dirty = true
}

// SetQuantity replaces the line quantity. A quantity of zero or less removes the line.
func (s *State) SetQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		s.RemoveFromCart(productID)
		return
	}
	for i := range s.data.Cart {
		if s.data.Cart[i].ProductID == productID {
			s.data.Cart[i].Quantity = quantity
			s.dirty = true
			return
		}
	}
	s.data.Cart = append(s.data.Cart, CartLine{ProductID: productID, Quantity: quantity})
	s.dirty = true
}

func (s *State) RemoveFromCart(productID int64) {
	for i := range s.data.Cart {
		if s.data.Cart[i].ProductID == productID {
			s.data.Cart = append(s.data.Cart[:i], s.data.Cart[i+1:]...)
			s.dirty = true
			return
		}
	}
}

func (s *State) ClearCart() {
	if len(s.data.Cart) == 0 {
		return
	}
	s.data.Cart = nil
	s.dirty = true
}

// CartLines returns a copy of the cart in insertion order.
func (s *State) CartLines() []CartLine {
	out := make([]CartLine, len(s.data.Cart))
	copy(out, s.data.Cart)
	return out
}

func (s *State) CartQuantity(productID int64) int {
	for _, line := range s.data.Cart {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

// CartCount sums the quantities of all lines.
func (s *State) CartCount() int {
	total := 0
	for _, line := range s.data.Cart {
		total += line.Quantity
	}
	return total
}

func (s *State) Flash(kind, message string) {
	if s.data.Flash == nil {
		s.data.Flash = make(map[string]string)
	}
	s.data.Flash[kind] = message
	s.dirty = true
}

// PeekFlash reads a message without consuming it.
func (s *State) PeekFlash(kind string) string {
	return s.data.Flash[kind]
}

// TakeFlash returns the message stored under kind and forgets it.
func (s *State) TakeFlash(kind string) (string, bool) {
	msg, ok := s.data.Flash[kind]
	if !ok {
		return "", false
	}
	delete(s.data.Flash, kind)
	s.dirty = true
	return msg, true
}

func (s *State) TakeFlashes() map[string]string {
	out := s.data.Flash
	if len(out) > 0 {
		s.data.Flash = nil
		s.dirty = true
	}
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// Rotate moves the state to a fresh id and keeps its contents. Called on
// login so a session id seen before authentication stops being valid.
func (s *State) Rotate() {
	if s.previousID == "" {
		s.previousID = s.id
	}
	s.id = uuid.NewString()
	s.dirty = true
}

// Destroy drops everything and rotates the id. The old id stays available
// through PreviousID so the owner can remove it from the store.
func (s *State) Destroy() {
	if s.previousID == "" {
		s.previousID = s.id
	}
	s.id = uuid.NewString()
	s.data = payload{}
	s.dirty = true
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.data)
}

// Decode rebuilds a State saved under id.
func Decode(id string, raw []byte) (*State, error) {
	s := &State{id: id, loaded: true}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

type ctxKey string

const stateKey ctxKey = "session"

func NewContext(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func FromContext(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(stateKey).(*State)
	return s, ok
}
