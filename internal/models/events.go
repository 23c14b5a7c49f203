package membership

import "time"

const (
	EventPointRequested = "point_request.created"
	EventKeyIssued      = "tarot_key.issued"
)

// Событие для оператора
type Event struct {
	Type  string    `json:"type"`
	Email string    `json:"email"`
	Ref   string    `json:"ref"`
	At    time.Time `json:"at"`
}

// Запись журнала: какое поле участника изменилось и на сколько
type AuditEntry struct {
	Email     string    `json:"email"`
	Operation string    `json:"operation"`
	Field     string    `json:"field"`
	Delta     int       `json:"delta"`
	At        time.Time `json:"at"`
}
