package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const (
	digestsCollection = "digests"
	resultsCollection = "daily_digest_results"
	resultsLeaf       = "results"
)

// firestoreDigest mirrors the documents the dashboard writes to "digests".
type firestoreDigest struct {
	UserID      string `firestore:"userId"`
	Name        string `firestore:"name"`
	Topics      string `firestore:"topics"`
	Description string `firestore:"description"`
}

// FirestoreRepository reads digests from and writes results to Cloud Firestore.
// Results live at daily_digest_results/<user>/<YYYY-MM-DD>/<digest>/results/<arxiv id>.
type FirestoreRepository struct {
	client *firestore.Client
	logger *slog.Logger
}

var _ ports.DocumentStore = (*FirestoreRepository)(nil)

// OpenFirestore creates a client for projectID. An empty credentialsFile uses
// application default credentials.
func OpenFirestore(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FirestoreRepository, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreRepository{client: client, logger: logger}, nil
}

// ListUsers streams the digests collection and groups it by userId.
func (r *FirestoreRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	iter := r.client.Collection(digestsCollection).Documents(ctx)
	defer iter.Stop()

	var rows []digestRow
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream digests: %w", err)
		}

		var d firestoreDigest
		if err := doc.DataTo(&d); err != nil {
			if r.logger != nil {
				r.logger.Warn("skip undecodable digest", "doc", doc.Ref.ID, "error", err)
			}
			continue
		}
		rows = append(rows, d.row())
	}

	return groupUsers(rows, r.logger), nil
}

// AppendResult writes the result as a child document named by its arXiv id,
// so a rerun overwrites instead of duplicating.
func (r *FirestoreRepository) AppendResult(ctx context.Context, key domain.ResultKey, result domain.DigestResult) error {
	if _, err := r.results(key).Doc(result.ArxivID).Set(ctx, resultDocument(result)); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// ClearResults deletes every document of the key's results subcollection.
func (r *FirestoreRepository) ClearResults(ctx context.Context, key domain.ResultKey) error {
	refs, err := r.results(key).DocumentRefs(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	for _, ref := range refs {
		if _, err := ref.Delete(ctx); err != nil {
			return fmt.Errorf("delete result %s: %w", ref.ID, err)
		}
	}
	return nil
}

func (r *FirestoreRepository) results(key domain.ResultKey) *firestore.CollectionRef {
	return r.client.
		Collection(resultsCollection).Doc(key.UserID).
		Collection(key.Date).Doc(key.DigestName).
		Collection(resultsLeaf)
}

// Close releases the client.
func (r *FirestoreRepository) Close() error {
	return r.client.Close()
}

func (d firestoreDigest) row() digestRow {
	return digestRow{
		UserID:      d.UserID,
		Name:        d.Name,
		Topics:      d.Topics,
		Description: d.Description,
	}
}

func resultDocument(result domain.DigestResult) map[string]interface{} {
	return map[string]interface{}{
		"relevancy_score": result.RelevancyScore,
		"reason":          result.Reason,
		"arxiv_id":        result.ArxivID,
	}
}
