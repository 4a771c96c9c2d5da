package storage

// UserRecord is a single registered user as persisted in the users document.
// Optional attributes are pointers so that absent values are written as null.
type UserRecord struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	Email       string  `json:"email"`
	Mobile      string  `json:"mobile"`
	Gender      *string `json:"gender"`
	Destination *string `json:"destination"`
	Image       *string `json:"image"`
}

// Clone returns a deep copy of the record.
func (r UserRecord) Clone() UserRecord {
	c := r
	c.Gender = cloneString(r.Gender)
	c.Destination = cloneString(r.Destination)
	c.Image = cloneString(r.Image)
	return c
}

// Document is the whole users collection together with the identity counter.
// It is the unit of durable storage: every save overwrites the previous one.
type Document struct {
	// LastID is the highest identity ever handed out. It never decreases,
	// so identities of deleted users are not reused.
	LastID int64 `json:"last_id"`

	// Users are kept in insertion order.
	Users []UserRecord `json:"users"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		LastID: d.LastID,
		Users:  make([]UserRecord, len(d.Users)),
	}
	for i, u := range d.Users {
		c.Users[i] = u.Clone()
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
