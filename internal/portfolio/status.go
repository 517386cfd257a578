package portfolio

import (
	"strings"

	"github.com/stupiduntilnot/kontempo/internal/record"
)

var statusLabels = map[string]string{
	record.StatusActive:    "ACTIVOS",
	record.StatusPending:   "PENDIENTES",
	record.StatusRejected:  "RECHAZADOS",
	record.StatusSuspended: "SUSPENDIDOS",
}

// StatusLabel returns the display label of an approval status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ToUpper(status)
}

// BuyerEntry is the display view of a buyer inside a status bucket.
type BuyerEntry struct {
	Name        string
	Email       string
	CreditLimit float64
}

// Bucket groups buyers sharing one approval status.
type Bucket struct {
	Status string
	Label  string
	Buyers []BuyerEntry
}

// Classify partitions buyers by approval status. Buckets appear in the order
// their status is first encountered and keep buyers in input order.
func Classify(buyers []record.Buyer) []Bucket {
	var buckets []Bucket
	index := make(map[string]int)
	for _, b := range buyers {
		status := b.Status()
		i, ok := index[status]
		if !ok {
			i = len(buckets)
			index[status] = i
			buckets = append(buckets, Bucket{Status: status, Label: StatusLabel(status)})
		}
		buckets[i].Buyers = append(buckets[i].Buyers, BuyerEntry{
			Name:        b.Name(),
			Email:       strings.TrimSpace(b.Email.String()),
			CreditLimit: b.CreditLine().Limit.Float64(),
		})
	}
	return buckets
}
