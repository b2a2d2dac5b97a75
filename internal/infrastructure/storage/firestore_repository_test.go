package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
)

// openEmulator connects to the Firestore emulator named by
// FIRESTORE_EMULATOR_HOST and skips the test when none is configured.
func openEmulator(t *testing.T) *FirestoreRepository {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	repo, err := OpenFirestore(context.Background(), "arxiv-digest-test", "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestFirestoreRepository_ListUsers(t *testing.T) {
	repo := openEmulator(t)
	ctx := context.Background()

	alice, bob := "alice-"+uuid.NewString(), "bob-"+uuid.NewString()
	seed := []firestoreDigest{
		{UserID: alice, Name: "vision", Topics: "cs.CV,cs.AI", Description: "video diffusion"},
		{UserID: alice, Name: "broken", Topics: "cs", Description: "never parsed"},
		{UserID: bob, Name: "stats", Topics: "stat.ML", Description: "bayesian methods"},
	}
	for _, d := range seed {
		_, err := repo.client.Collection(digestsCollection).Doc(uuid.NewString()).Set(ctx, d)
		require.NoError(t, err)
	}

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)

	byID := map[string]domain.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	require.Equal(t, []domain.Digest{
		{Name: "vision", Topics: []domain.Topic{{ID: "cs", Subtopics: []string{"AI", "CV"}}}, Interests: "video diffusion"},
	}, byID[alice].Digests)
	require.Equal(t, []domain.Digest{
		{Name: "stats", Topics: []domain.Topic{{ID: "stat", Subtopics: []string{"ML"}}}, Interests: "bayesian methods"},
	}, byID[bob].Digests)
}

func TestFirestoreRepository_AppendAndClearResults(t *testing.T) {
	repo := openEmulator(t)
	ctx := context.Background()

	key := domain.ResultKey{UserID: "carol-" + uuid.NewString(), Date: "2024-05-15", DigestName: "vision"}
	require.NoError(t, repo.AppendResult(ctx, key, domain.DigestResult{RelevancyScore: 8, Reason: "first", ArxivID: "2405.00001"}))
	require.NoError(t, repo.AppendResult(ctx, key, domain.DigestResult{RelevancyScore: 9, Reason: "second", ArxivID: "2405.00001"}))
	require.NoError(t, repo.AppendResult(ctx, key, domain.DigestResult{RelevancyScore: 10, Reason: "other", ArxivID: "2405.00002"}))

	docs, err := repo.results(key).Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	snap, err := repo.client.Doc("daily_digest_results/" + key.UserID + "/2024-05-15/vision/results/2405.00001").Get(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"relevancy_score": int64(9),
		"reason":          "second",
		"arxiv_id":        "2405.00001",
	}, snap.Data())

	require.NoError(t, repo.ClearResults(ctx, key))
	docs, err = repo.results(key).Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Empty(t, docs)

	require.NoError(t, repo.ClearResults(ctx, key))
}
