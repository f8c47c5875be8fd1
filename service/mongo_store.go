package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/AnTengye/contractscore/model"
)

const (
	contractsCollection = "contracts"
	resultsCollection   = "contract_data"
)

type contractDoc struct {
	ID           string    `bson:"_id"`
	Filename     string    `bson:"filename"`
	FilePath     string    `bson:"file_path"`
	Status       string    `bson:"status"`
	Progress     int       `bson:"progress"`
	UploadDate   time.Time `bson:"upload_date"`
	ErrorMessage string    `bson:"error_message,omitempty"`
	FileSize     int64     `bson:"file_size"`
	ContentHash  string    `bson:"content_hash"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoStore keeps contracts in the "contracts" collection and extraction
// results in "contract_data", both keyed by contract id.
type MongoStore struct {
	client    *mongo.Client
	contracts *mongo.Collection
	results   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		contracts: db.Collection(contractsCollection),
		results:   db.Collection(resultsCollection),
	}

	_, err = s.contracts.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "upload_date", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Create(ctx context.Context, c *model.Contract) error {
	doc := toContractDoc(c)
	doc.UpdatedAt = time.Now()
	if _, err := s.contracts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Contract, error) {
	var doc contractDoc
	err := s.contracts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) List(ctx context.Context, opts ListOptions) ([]*model.Contract, int64, error) {
	opts = opts.Normalize()

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}

	total, err := s.contracts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "upload_date", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(opts.Offset())).
		SetLimit(int64(opts.PageSize))
	cur, err := s.contracts.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}
	var docs []contractDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode contracts: %w", err)
	}

	out := make([]*model.Contract, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, total, nil
}

func (s *MongoStore) Transition(ctx context.Context, id, from, to, errMsg string) error {
	res, err := s.contracts.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "error_message": errMsg, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *MongoStore) SetProgress(ctx context.Context, id string, progress int) error {
	res, err := s.contracts.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusProcessing, "progress": bson.M{"$lt": progress}},
		bson.M{"$set": bson.M{"progress": progress, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != model.StatusProcessing {
		return ErrStatusConflict
	}
	return nil
}

// SaveResult stores the result as a plain document so it stays queryable
// from the mongo shell.
func (s *MongoStore) SaveResult(ctx context.Context, r *model.ExtractionResult) error {
	if _, err := s.Get(ctx, r.ContractID); err != nil {
		return err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return fmt.Errorf("failed to convert result: %w", err)
	}
	doc["_id"] = r.ContractID

	_, err = s.results.ReplaceOne(ctx, bson.M{"_id": r.ContractID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *MongoStore) GetResult(ctx context.Context, contractID string) (*model.ExtractionResult, error) {
	var doc bson.M
	err := s.results.FindOne(ctx, bson.M{"_id": contractID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	delete(doc, "_id")

	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert result: %w", err)
	}
	var out model.ExtractionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &out, nil
}

func (s *MongoStore) DeleteResult(ctx context.Context, contractID string) error {
	if _, err := s.results.DeleteOne(ctx, bson.M{"_id": contractID}); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

func (s *MongoStore) Scores(ctx context.Context, contractIDs []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(contractIDs))
	if len(contractIDs) == 0 {
		return scores, nil
	}

	cur, err := s.results.Find(ctx,
		bson.M{"_id": bson.M{"$in": contractIDs}},
		options.Find().SetProjection(bson.M{"confidence_score": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	var rows []struct {
		ID    string  `bson:"_id"`
		Score float64 `bson:"confidence_score"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	for _, r := range rows {
		scores[r.ID] = r.Score
	}
	return scores, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toContractDoc(c *model.Contract) contractDoc {
	return contractDoc{
		ID:           c.ID,
		Filename:     c.Filename,
		FilePath:     c.FilePath,
		Status:       c.Status,
		Progress:     c.Progress,
		UploadDate:   c.UploadDate,
		ErrorMessage: c.ErrorMessage,
		FileSize:     c.FileSize,
		ContentHash:  c.ContentHash,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (d contractDoc) toModel() *model.Contract {
	return &model.Contract{
		ID:           d.ID,
		Filename:     d.Filename,
		FilePath:     d.FilePath,
		Status:       d.Status,
		Progress:     d.Progress,
		UploadDate:   d.UploadDate,
		ErrorMessage: d.ErrorMessage,
		FileSize:     d.FileSize,
		ContentHash:  d.ContentHash,
		UpdatedAt:    d.UpdatedAt,
	}
}
