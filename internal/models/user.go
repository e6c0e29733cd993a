package models

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Principal is the authenticated identity extracted from the Supabase JWT.
// It is immutable for the lifetime of a request; services receive it (or its
// ID) explicitly instead of reading any shared session state.
type Principal struct {
	ID    string   `json:"id"` // supabase user uuid ("sub" claim)
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
