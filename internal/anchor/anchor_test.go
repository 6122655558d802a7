package anchor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/pkg/models"
)

type fakeStore struct {
	sub *models.Submission
}

func (s *fakeStore) Create(ctx context.Context, sub *models.Submission) error { return nil }

func (s *fakeStore) Load(ctx context.Context, id string) (*models.Submission, error) {
	if s.sub == nil || s.sub.ID != id {
		return nil, repository.ErrNotFound
	}
	clone := *s.sub
	return &clone, nil
}

func (s *fakeStore) Save(ctx context.Context, id string, update models.SubmissionUpdate) error {
	return nil
}

func (s *fakeStore) TransitionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) error {
	return nil
}

func (s *fakeStore) FindLatestVerified(ctx context.Context, projectID, excludeID string) (*models.Submission, error) {
	return nil, repository.ErrNotFound
}

func (s *fakeStore) ListByProject(ctx context.Context, projectID string) ([]*models.Submission, error) {
	return nil, nil
}

func verifiedSubmission() *models.Submission {
	score := 0.91
	biomass := 17.5
	carbon := 6.99
	co2 := 25.65
	version := "mangrove:v1.0.3,biomass:v2.1.0,temporal:N/A"
	return &models.Submission{
		ID:              "sub-1",
		ProjectID:       "project-1",
		CapturedAt:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Status:          models.StatusVerified,
		MangroveScore:   &score,
		BiomassEstimate: &biomass,
		CarbonEstimate:  &carbon,
		CO2Equivalent:   &co2,
		ModelVersion:    &version,
	}
}

func TestNotify_DisabledReportsSkipped(t *testing.T) {
	svc := New(Config{Enabled: false}, &fakeStore{}, logging.NewLogger())

	result, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, "skipped", result.Status)
	assert.Empty(t, result.DataHash)
}

func TestNotify_WithoutCredentialsReportsMock(t *testing.T) {
	store := &fakeStore{sub: verifiedSubmission()}
	svc := New(Config{Enabled: true}, store, logging.NewLogger())

	result, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, "mock", result.Status)
	assert.NotEmpty(t, result.DataHash)
	assert.Empty(t, result.TxHash)
}

func TestNotify_WithCredentialsAnchors(t *testing.T) {
	store := &fakeStore{sub: verifiedSubmission()}
	svc := New(Config{
		Enabled:         true,
		RPCURL:          "http://localhost:8545",
		RegistryAddress: "0xregistry",
		PrivateKey:      "key",
	}, store, logging.NewLogger())

	result, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, "anchored", result.Status)
	assert.NotEmpty(t, result.DataHash)
	assert.Contains(t, result.TxHash, "0x")
}

func TestNotify_HashIsDeterministic(t *testing.T) {
	store := &fakeStore{sub: verifiedSubmission()}
	svc := New(Config{Enabled: true}, store, logging.NewLogger())

	first, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)
	second, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, first.DataHash, second.DataHash)
}

func TestNotify_HashChangesWithOutputs(t *testing.T) {
	sub := verifiedSubmission()
	store := &fakeStore{sub: sub}
	svc := New(Config{Enabled: true}, store, logging.NewLogger())

	first, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	changed := 99.9
	sub.CO2Equivalent = &changed
	second, err := svc.Notify(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.DataHash, second.DataHash)
}

func TestNotify_UnknownSubmission(t *testing.T) {
	svc := New(Config{Enabled: true}, &fakeStore{}, logging.NewLogger())

	_, err := svc.Notify(context.Background(), "missing")
	assert.Error(t, err)
}
