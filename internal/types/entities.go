package types

import (
	"database/sql"
	"time"
)

type UserStatus string

const (
	StatusActive  UserStatus = "active"
	StatusFreezed UserStatus = "freezed"
	StatusBanned  UserStatus = "banned"
)

type Domain struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Available bool      `json:"available" db:"available"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Link is one short link: the (Domain, ShortName) pair redirects to Destination.
// UserID is null for links created anonymously.
type Link struct {
	ID          int64          `json:"id" db:"id"`
	UserID      sql.NullInt64  `json:"user_id" db:"user_id"`
	DomainID    int64          `json:"domain_id" db:"domain_id"`
	CreatorIP   string         `json:"creator_ip" db:"creator_ip"`
	CustomName  sql.NullString `json:"custom_name" db:"custom_name"`
	Destination string         `json:"destination" db:"destination"`
	ShortName   string         `json:"short_name" db:"short_name"`
	Available   bool           `json:"available" db:"available"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type User struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ClickEvent is a fully derived click, ready for the analytics store.
type ClickEvent struct {
	LinkID      int64     `json:"link_id"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Device      string    `json:"device"`
	CountryName string    `json:"country_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// LinkCache is the value kept in Redis for resolved (host, path) pairs.
type LinkCache struct {
	LinkID      int64  `json:"link_id"`
	UserID      int64  `json:"user_id"` // 0 when the link is anonymous
	Destination string `json:"destination"`
}

type ShortLink struct {
	ShortName  string `json:"short_name"`
	DomainName string `json:"domain_name"`
}

func (s ShortLink) URL() string {
	return "https://" + s.DomainName + "/" + s.ShortName
}
