// Package mongostore keeps shifts in MongoDB. Technicians are embedded in the
// shift document and numeric ids come from a counters collection so records
// look the same as the ones from the sqlite store.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/models"
)

const (
	SHIFT_COLLECTION   = "shifts"
	COUNTER_COLLECTION = "counters"
	DEFAULT_TIMEOUT    = 5 * time.Second
)

// Store is the MongoDB shift repository
type Store struct {
	client   *mongo.Client
	shifts   *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
}

// Open connects, pings and makes sure the indexes exist
func Open(ctx context.Context, uri, dbName string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not instantiate mongo client: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not reach mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:   client,
		shifts:   db.Collection(SHIFT_COLLECTION),
		counters: db.Collection(COUNTER_COLLECTION),
		timeout:  timeout,
	}

	_, err = s.shifts.Indexes().CreateMany(cctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}}},
		{Keys: bson.D{{Key: "technicians.code", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not create shift indexes: %w", err)
	}
	return s, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Describe names the backend for logs
func (s *Store) Describe() string {
	return "mongo"
}

// CreateShift inserts a new shift
func (s *Store) CreateShift(ctx context.Context, req models.CreateShiftRequest) (*models.Shift, error) {
	shift, err := lifecycle.NewShift(req)
	if err != nil {
		return nil, err
	}
	shift.Technicians = technicians(req.TechnicianCodes)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	shift.ID = uint(id)
	shift.CreatedAt = now
	shift.UpdatedAt = now

	if _, err := s.shifts.InsertOne(ctx, fromModel(shift)); err != nil {
		return nil, fmt.Errorf("could not insert shift into Mongo: %w", err)
	}
	return &shift, nil
}

// GetShift retrieves a non-deleted shift by ID
func (s *Store) GetShift(ctx context.Context, id uint) (*models.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.getShift(ctx, id)
}

func (s *Store) getShift(ctx context.Context, id uint) (*models.Shift, error) {
	var doc shiftDoc
	err := s.shifts.FindOne(ctx, bson.M{"_id": uint64(id), "deleted_at": nil}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("shift #%d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not find shift #%d in Mongo: %w", id, err)
	}
	shift := doc.toModel()
	return &shift, nil
}

// ListShifts retrieves shifts ordered by start time
func (s *Store) ListShifts(ctx context.Context, opts models.ListOptions) ([]models.Shift, error) {
	findOpts := options.Find().SetSort(startOrder)
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	return s.find(ctx, listFilter(opts), findOpts)
}

// ListNonTerminalShifts returns every shift the reconciler may still move
func (s *Store) ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error) {
	return s.find(ctx, nonTerminalFilter(), options.Find().SetSort(startOrder))
}

// ListDueShifts returns the non-terminal shifts whose next boundary is at or before now
func (s *Store) ListDueShifts(ctx context.Context, now time.Time) ([]models.Shift, error) {
	return s.find(ctx, dueFilter(now), options.Find().SetSort(startOrder))
}

// CompareAndSetStatus writes next only if the stored status is still expected
func (s *Store) CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error) {
	if !lifecycle.IsForward(expected, next) {
		return false, fmt.Errorf("shift #%d %s -> %s: %w", id, expected, next, lifecycle.ErrInvalidTransition)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.shifts.UpdateOne(ctx, casFilter(id, expected), bson.M{
		"$set": bson.M{"status": string(next), "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("could not update shift #%d in Mongo: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// AssignShift sets the assignee and moves the shift to SCHEDULED
func (s *Store) AssignShift(ctx context.Context, id uint, req models.AssignRequest) (*models.Shift, error) {
	return s.mutate(ctx, id, func(shift *models.Shift) (models.Status, bson.M, error) {
		expected, err := lifecycle.ApplyAssignment(shift, req)
		if err != nil {
			return "", nil, err
		}
		set := bson.M{
			"assignee_id": shift.AssigneeID,
			"staff_id":    shift.StaffID,
			"end_time":    utcPtr(shift.EndTime),
			"total_hours": shift.TotalHours,
			"status":      string(shift.Status),
		}
		if codes := lifecycle.NormalizeCodes(req.TechnicianCodes); len(codes) > 0 {
			shift.Technicians = technicians(codes)
			set["technicians"] = techDocs(shift.Technicians)
		}
		return expected, set, nil
	})
}

// CancelShift moves a non-terminal shift to CANCELLED
func (s *Store) CancelShift(ctx context.Context, id uint, note string) (*models.Shift, error) {
	return s.mutate(ctx, id, func(shift *models.Shift) (models.Status, bson.M, error) {
		expected, err := lifecycle.ApplyCancel(shift, note)
		if err != nil {
			return "", nil, err
		}
		return expected, bson.M{"status": string(shift.Status), "notes": shift.Notes}, nil
	})
}

// SetEndTime sets or moves the end of a non-terminal shift
func (s *Store) SetEndTime(ctx context.Context, id uint, end time.Time) (*models.Shift, error) {
	return s.mutate(ctx, id, func(shift *models.Shift) (models.Status, bson.M, error) {
		expected, err := lifecycle.ApplyEndTime(shift, end)
		if err != nil {
			return "", nil, err
		}
		return expected, bson.M{"end_time": utcPtr(shift.EndTime), "total_hours": shift.TotalHours}, nil
	})
}

// DeleteShift soft-deletes a shift
func (s *Store) DeleteShift(ctx context.Context, id uint) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.shifts.UpdateOne(ctx, bson.M{"_id": uint64(id), "deleted_at": nil}, bson.M{
		"$set": bson.M{"deleted_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("could not delete shift #%d in Mongo: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("shift #%d: %w", id, lifecycle.ErrNotFound)
	}
	return nil
}

// mutate reads the shift, lets apply change it and writes the returned fields
// only if the stored status still equals the status apply saw.
func (s *Store) mutate(ctx context.Context, id uint, apply func(*models.Shift) (models.Status, bson.M, error)) (*models.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	shift, err := s.getShift(ctx, id)
	if err != nil {
		return nil, err
	}
	expected, set, err := apply(shift)
	if err != nil {
		return nil, err
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.shifts.UpdateOne(ctx, casFilter(id, expected), bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("could not update shift #%d in Mongo: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("shift #%d: %w", id, lifecycle.ErrConflict)
	}
	return shift, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.shifts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("could not find shifts from Mongo: %w", err)
	}
	defer cur.Close(ctx)

	res := make([]models.Shift, 0)
	for cur.Next(ctx) {
		var doc shiftDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("could not decode Mongo response: %w", err)
		}
		res = append(res, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error while reading shifts: %w", err)
	}
	return res, nil
}

// nextID allocates the next shift id from the counters collection
func (s *Store) nextID(ctx context.Context) (uint64, error) {
	var counter struct {
		Seq uint64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": SHIFT_COLLECTION},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("could not allocate shift id: %w", err)
	}
	return counter.Seq, nil
}
