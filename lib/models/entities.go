package models

import "time"

type Checkpoint struct {
	SourceName string `gorm:"primaryKey"`
	LastID     string `gorm:"not null"`
	UpdatedAt  time.Time
}

type Subscriber struct {
	Platform   string    `gorm:"primaryKey" json:"platform"`
	Identifier string    `gorm:"primaryKey" json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
}

type Subscribers []Subscriber

func (s Subscriber) String() string {
	return s.Platform + ":" + s.Identifier
}

type Company struct {
	Name   string `gorm:"primaryKey" yaml:"name" json:"name"`
	Ticker string `gorm:"index;not null" yaml:"ticker" json:"ticker"`
}

type Companies []Company

// Keywords returns the companies as a name -> ticker mapping.
func (cs Companies) Keywords() map[string]string {
	out := make(map[string]string, len(cs))
	for _, c := range cs {
		out[c.Name] = c.Ticker
	}
	return out
}
