package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("transcript: record not found")

// Store persists transcript records in one MongoDB collection. Each persona
// part gets its own collection, so the service holds one Store per part.
//
// The store assumes a single writer per (user, session) — one browser tab per
// participant. Writes are individually atomic but there is no cross-writer
// mutual exclusion; concurrent full saves are last-writer-wins.
type Store struct {
	col *mongo.Collection
}

func NewStore(col *mongo.Collection) *Store {
	return &Store{col: col}
}

// AppendMessage appends msg to the session's transcript, creating the user
// record and the session entry as needed. The append is blind: retries with
// identical content produce duplicate entries, de-duplication is the caller's
// job.
func (s *Store) AppendMessage(ctx context.Context, userID, sessionToken string, msg Message) error {
	// Targeted push onto an existing session entry.
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID, "sessions.session_id": sessionToken},
		bson.M{"$push": bson.M{"sessions.$.transcript": msg}},
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// No such session yet: push a fresh entry, upserting the record itself.
	entry := SessionEntry{
		SessionID:  sessionToken,
		Date:       time.Now().UTC(),
		Transcript: []Message{msg},
	}
	_, err = s.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"sessions": entry}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("append message: create session: %w", err)
	}
	return nil
}

// SaveFullTranscript replaces the stored transcript for (userID, sessionToken)
// with history and stamps a fresh date. This is a full replace, not a merge:
// a save racing an append can drop the appended message. An empty history is
// persisted as an empty array.
func (s *Store) SaveFullTranscript(ctx context.Context, userID, sessionToken string, history []Message) error {
	if history == nil {
		history = []Message{}
	}
	now := time.Now().UTC()

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID, "sessions.session_id": sessionToken},
		bson.M{"$set": bson.M{
			"sessions.$.transcript": history,
			"sessions.$.date":       now,
		}},
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	entry := SessionEntry{
		SessionID:  sessionToken,
		Date:       now,
		Transcript: history,
	}
	_, err = s.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"sessions": entry}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save transcript: create session: %w", err)
	}
	return nil
}

// GetRecord returns the full record for userID, or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, userID string) (*Record, error) {
	var rec Record
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns every record in the collection. The cohort is small and
// bounded, so no pagination.
func (s *Store) ListRecords(ctx context.Context) ([]Record, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}
