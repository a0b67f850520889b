package radioid

import (
	"strings"
	"time"
)

// User is one entry from the radioid.net DMR ID database, associating
// a radio ID with the station registered to it. The relay uses it
// purely for human-readable annotation: nothing in the voice relaying
// decision path reads a User field directly.
type User struct {
	RadioID   uint32    `gorm:"primarykey;not null" json:"radio_id"`
	Callsign  string    `gorm:"index;size:20" json:"callsign"`
	FirstName string    `gorm:"size:50" json:"first_name"`
	LastName  string    `gorm:"size:50" json:"last_name"`
	City      string    `gorm:"size:50" json:"city"`
	State     string    `gorm:"size:50" json:"state"`
	Country   string    `gorm:"size:50" json:"country"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the GORM table name.
func (User) TableName() string { return "radioid_users" }

// Summary renders a one-line description of the user: callsign, name
// if known, location if known.
// A blank field is simply skipped rather than left as an empty
// separator, so "K7ABC" and "K7ABC John Doe (Seattle, WA)" are both
// valid output depending on how complete the upstream record is.
func (u *User) Summary() string {
	if u == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if u.Callsign != "" {
		parts = append(parts, u.Callsign)
	}
	if name := u.name(); name != "" {
		parts = append(parts, name)
	}
	if loc := u.location(); loc != "" {
		parts = append(parts, loc)
	}
	return strings.Join(parts, " ")
}

func (u *User) name() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

func (u *User) location() string {
	var parts []string
	for _, p := range []string{u.City, u.State, u.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
