package database

// Subscription is one notification signup. Countries nil means all
// countries. Subscriptions are deactivated on unsubscribe, never deleted,
// so a returning email reactivates its existing row.
type Subscription struct {
	ID               string
	Email            string
	Countries        []string
	IsActive         bool
	UnsubscribeToken string
	CreatedAt        *string
}

// SubscribeOutcome describes what a Subscribe call did.
type SubscribeOutcome int

const (
	SubscribeCreated SubscribeOutcome = iota
	SubscribeReactivated
	SubscribeUnchanged
)

// UnsubscribeOutcome describes what an Unsubscribe call did.
type UnsubscribeOutcome int

const (
	UnsubscribeDone UnsubscribeOutcome = iota
	UnsubscribeAlreadyInactive
	UnsubscribeNotFound
)

// Stats contains aggregate store statistics.
type Stats struct {
	TotalSubscriptions  int
	ActiveSubscriptions int
	AttemptsLast24h     int
}
