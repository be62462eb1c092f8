package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Series are stored as one document per local day under
// installations/{id}/{channel} and capacities under capacities/{id}.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(installationID string, channel types.Channel) (*firestore.CollectionRef, error) {
	if installationID == "" {
		return nil, fmt.Errorf("installationID cannot be empty")
	}
	return f.client.Collection("installations").Doc(installationID).Collection(string(channel)), nil
}

// UpsertSeries writes one document per day with the day's readings as a JSON
// blob. The document ID is the YYYY-MM-DD date so documents sort
// chronologically. Days from a previous run that are no longer present are
// deleted.
func (f *FirestoreProvider) UpsertSeries(ctx context.Context, installationID string, channel types.Channel, readings []types.Reading) error {
	coll, err := f.getCollection(installationID, channel)
	if err != nil {
		return err
	}

	days := types.SplitDays(readings)
	keep := make(map[string]bool, len(days))

	bw := f.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, day := range days {
		jsonBytes, err := json.Marshal(day.Readings)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to marshal readings for %s: %w", day.Date, err)
		}
		docID := day.Date.String()
		keep[docID] = true
		job, err := bw.Set(coll.Doc(docID), map[string]interface{}{
			"json": string(jsonBytes),
			"date": docID,
		})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue day %s: %w", docID, err)
		}
		jobs = append(jobs, job)
	}

	refs, err := coll.DocumentRefs(ctx).GetAll()
	if err != nil {
		bw.End()
		return fmt.Errorf("failed to list existing days: %w", err)
	}
	for _, ref := range refs {
		if keep[ref.ID] {
			continue
		}
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue delete of %s: %w", ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to upsert series: %w", err)
		}
	}
	return nil
}

// GetSeries reads every day document in date order.
func (f *FirestoreProvider) GetSeries(ctx context.Context, installationID string, channel types.Channel) ([]types.Reading, error) {
	coll, err := f.getCollection(installationID, channel)
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var readings []types.Reading
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating series: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "series doc missing json", slog.String("docID", doc.Ref.ID), slog.String("installationID", installationID), slog.Any("err", err))
			return nil, fmt.Errorf("series doc %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "series doc json not string", slog.String("docID", doc.Ref.ID), slog.String("installationID", installationID))
			return nil, fmt.Errorf("series doc %s 'json' field is not string", doc.Ref.ID)
		}

		var day []types.Reading
		if err := json.Unmarshal([]byte(jsonStr), &day); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal series", slog.String("docID", doc.Ref.ID), slog.String("installationID", installationID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal series (id=%s): %w", doc.Ref.ID, err)
		}
		readings = append(readings, day...)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrSeriesNotFound, channel, installationID)
	}
	return readings, nil
}

// UpsertCapacities writes each capacity to capacities/{installationID}.
func (f *FirestoreProvider) UpsertCapacities(ctx context.Context, capacities []types.Capacity) error {
	for _, c := range capacities {
		if c.InstallationID == "" {
			return fmt.Errorf("capacity missing installationID")
		}
		jsonBytes, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal capacity: %w", err)
		}
		_, err = f.client.Collection("capacities").Doc(c.InstallationID).Set(ctx, map[string]interface{}{
			"json":     string(jsonBytes),
			"capacity": c.Capacity,
			"cluster":  c.Cluster,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert capacity %s: %w", c.InstallationID, err)
		}
	}
	return nil
}

// GetCapacities retrieves all capacities ordered by installation.
func (f *FirestoreProvider) GetCapacities(ctx context.Context) ([]types.Capacity, error) {
	iter := f.client.Collection("capacities").OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var capacities []types.Capacity
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating capacities: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "capacity doc missing json", slog.String("installationID", doc.Ref.ID))
			// Skip malformed documents
			continue
		}
		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "capacity doc json not string", slog.String("installationID", doc.Ref.ID))
			continue
		}

		var c types.Capacity
		if err := json.Unmarshal([]byte(jsonStr), &c); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal capacity", slog.String("installationID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		capacities = append(capacities, c)
	}
	return capacities, nil
}

// GetCapacity retrieves a single installation's capacity.
func (f *FirestoreProvider) GetCapacity(ctx context.Context, installationID string) (types.Capacity, error) {
	doc, err := f.client.Collection("capacities").Doc(installationID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Capacity{}, ErrCapacityNotFound
		}
		return types.Capacity{}, fmt.Errorf("failed to fetch capacity: %w", err)
	}
	val, err := doc.DataAt("json")
	if err != nil {
		return types.Capacity{}, fmt.Errorf("capacity document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.Capacity{}, fmt.Errorf("capacity 'json' field is not a string")
	}
	var c types.Capacity
	if err := json.Unmarshal([]byte(jsonStr), &c); err != nil {
		return types.Capacity{}, fmt.Errorf("failed to unmarshal capacity json: %w", err)
	}
	return c, nil
}
