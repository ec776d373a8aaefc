package raffle

import "raffle-storefront/internal/model"

// Available narrows numbers to those actorID may see or act on:
// every active number, the actor's own reservations and the numbers the
// actor bought. Input order is preserved and the input is not modified.
func Available(numbers []model.RaffleNumber, actorID string) []model.RaffleNumber {
	out := make([]model.RaffleNumber, 0, len(numbers))
	for _, n := range numbers {
		switch {
		case n.Status == model.NumberActive:
			out = append(out, n)
		case n.IsReservedBy(actorID):
			out = append(out, n)
		case n.IsOwnedBy(actorID):
			out = append(out, n)
		}
	}
	return out
}

// VisibleTo applies Available for buyers. The raffle owner sees everything.
func VisibleTo(r model.Raffle, numbers []model.RaffleNumber, actorID string) []model.RaffleNumber {
	if r.IsOwner(actorID) {
		out := make([]model.RaffleNumber, len(numbers))
		copy(out, numbers)
		return out
	}
	return Available(numbers, actorID)
}
