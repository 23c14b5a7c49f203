package membership

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
)

const keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Случайные серийные номера и ключи. Коллизии возможны и допускаются.
type RandomIDs struct{}

func (RandomIDs) SerialNumber() string {
	return fmt.Sprintf("WK-%d", 1000+rand.IntN(9000))
}

func (RandomIDs) Key() string {
	b := make([]byte, models.KeyLength)
	for i := range b {
		b[i] = keyAlphabet[rand.IntN(len(keyAlphabet))]
	}
	return string(b)
}

func (RandomIDs) RequestID() string {
	return uuid.NewString()
}
