package store

import (
	"context"
	"fmt"
	"sort"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// FirebaseStore keeps records under records/<chat> and transcripts under
// transcripts/<chat>/<push id> in a Firebase Realtime Database.
type FirebaseStore struct {
	client *db.Client
}

func NewFirebaseStore(ctx context.Context, serviceAccountKeyPath, databaseURL string) (*FirebaseStore, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, option.WithCredentialsFile(serviceAccountKeyPath))
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting database client: %w", err)
	}

	return &FirebaseStore{client: client}, nil
}

func (s *FirebaseStore) AppendEntry(ctx context.Context, chat string, e Entry) error {
	if _, err := s.client.NewRef("transcripts").Child(sanitizeKey(chat)).Push(ctx, e); err != nil {
		return fmt.Errorf("appending entry: %w", err)
	}
	return nil
}

func (s *FirebaseStore) Transcript(ctx context.Context, chat string) ([]Entry, error) {
	var byKey map[string]Entry
	if err := s.client.NewRef("transcripts").Child(sanitizeKey(chat)).Get(ctx, &byKey); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	// Push ids sort chronologically.
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, byKey[k])
	}
	return entries, nil
}

func (s *FirebaseStore) GetRecord(ctx context.Context, chat string) (*Record, error) {
	var rec Record
	if err := s.client.NewRef("records").Child(sanitizeKey(chat)).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	if rec.Chat == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *FirebaseStore) SaveRecord(ctx context.Context, rec Record) error {
	if rec.Chat == "" {
		return fmt.Errorf("saving record: empty chat key")
	}
	if err := s.client.NewRef("records").Child(sanitizeKey(rec.Chat)).Set(ctx, rec); err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

// Close is a no-op; the database client holds no resources that need release.
func (s *FirebaseStore) Close() error { return nil }
