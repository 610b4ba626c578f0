package db

import "cloud.google.com/go/firestore"

// NewFirestoreStore builds the Firestore-backed repositories on one client.
// Close closes the client.
func NewFirestoreStore(client *firestore.Client) *Store {
	return &Store{
		Entitlements: NewFirestoreEntitlementRepository(client),
		Essays:       NewFirestoreEssayRepository(client),
		Reviews:      NewFirestoreReviewRepository(client),
		Usage:        NewFirestoreUsageRepository(client),
		Webhooks:     NewFirestoreWebhookEventRepository(client),
		Submitter:    NewFirestoreReviewSubmitter(client),
		Close:        client.Close,
	}
}
