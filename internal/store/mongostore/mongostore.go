// Package mongostore keeps website records in a MongoDB collection. It
// implements the same repository contract as the PostgreSQL SiteStore and
// is selected with SITE_STORE=mongo.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// Collection is the name of the collection holding website records.
const Collection = "websites"

// siteDocument is the shape written to MongoDB.
type siteDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     string             `bson:"owner_id"`
	StoreName   string             `bson:"store_name"`
	Tagline     string             `bson:"tagline,omitempty"`
	About       string             `bson:"about"`
	Products    []models.Product   `bson:"products"`
	ContactInfo string             `bson:"contact_info"`
	SocialLinks string             `bson:"social_links,omitempty"`
	StoreHours  string             `bson:"store_hours,omitempty"`
	HeaderImage string             `bson:"header_image,omitempty"`
	HTMLContent string             `bson:"html_content"`
	IsPublic    bool               `bson:"is_public"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toDocument(s *models.Site) siteDocument {
	return siteDocument{
		OwnerID:     s.OwnerID.String(),
		StoreName:   s.StoreName,
		Tagline:     s.Tagline,
		About:       s.About,
		Products:    s.Products,
		ContactInfo: s.ContactInfo,
		SocialLinks: s.SocialLinks,
		StoreHours:  s.StoreHours,
		HeaderImage: s.HeaderImage,
		HTMLContent: s.HTMLContent,
		IsPublic:    s.IsPublic,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (d *siteDocument) toSite() (*models.Site, error) {
	owner, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("decode owner id: %w", err)
	}
	return &models.Site{
		ID:          d.ID.Hex(),
		OwnerID:     owner,
		StoreName:   d.StoreName,
		Tagline:     d.Tagline,
		About:       d.About,
		Products:    d.Products,
		ContactInfo: d.ContactInfo,
		SocialLinks: d.SocialLinks,
		StoreHours:  d.StoreHours,
		HeaderImage: d.HeaderImage,
		HTMLContent: d.HTMLContent,
		IsPublic:    d.IsPublic,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// Connect opens a MongoDB client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(25)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	slog.Info("mongo connected")
	return client, nil
}

// SiteStore persists website records in MongoDB.
type SiteStore struct {
	col *mongo.Collection
	now func() time.Time
}

// NewSiteStore returns a store over db's websites collection.
func NewSiteStore(db *mongo.Database) *SiteStore {
	return &SiteStore{col: db.Collection(Collection), now: time.Now}
}

// EnsureIndexes creates the owner and public-listing indexes.
func (s *SiteStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create site indexes: %w", err)
	}
	return nil
}

// objectID parses a hex id; ok is false for ids that cannot exist.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// Create inserts a new site and returns it with the generated ID.
func (s *SiteStore) Create(ctx context.Context, site *models.Site) (*models.Site, error) {
	doc := toDocument(site)
	now := s.now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	if doc.Products == nil {
		doc.Products = []models.Product{}
	}

	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("create site: unexpected id type %T", res.InsertedID)
	}
	doc.ID = oid
	return doc.toSite()
}

// FindByID retrieves a single site. Returns nil if not found.
func (s *SiteStore) FindByID(ctx context.Context, id string) (*models.Site, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var doc siteDocument
	err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find site by id: %w", err)
	}
	return doc.toSite()
}

// ListByOwner returns every site owned by the user, newest first.
func (s *SiteStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Site, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.find(ctx, bson.M{"owner_id": ownerID.String()}, opts)
}

// ListPublic returns up to limit public sites, newest first.
func (s *SiteStore) ListPublic(ctx context.Context, limit int) ([]models.Site, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, bson.M{"is_public": true}, opts)
}

func (s *SiteStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Site, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer cur.Close(ctx)

	var sites []models.Site
	for cur.Next(ctx) {
		var doc siteDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode site: %w", err)
		}
		site, err := doc.toSite()
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}
	return sites, cur.Err()
}

// Update overwrites the form fields and generated HTML of a site. The
// owner and visibility are left untouched. Returns nil if not found.
func (s *SiteStore) Update(ctx context.Context, site *models.Site) (*models.Site, error) {
	oid, ok := objectID(site.ID)
	if !ok {
		return nil, nil
	}
	products := site.Products
	if products == nil {
		products = []models.Product{}
	}
	update := bson.M{"$set": bson.M{
		"store_name":   site.StoreName,
		"tagline":      site.Tagline,
		"about":        site.About,
		"products":     products,
		"contact_info": site.ContactInfo,
		"social_links": site.SocialLinks,
		"store_hours":  site.StoreHours,
		"header_image": site.HeaderImage,
		"html_content": site.HTMLContent,
		"updated_at":   s.now().UTC(),
	}}
	return s.findAndUpdate(ctx, oid, update)
}

// SetVisibility flips the public flag only. Returns nil if not found.
func (s *SiteStore) SetVisibility(ctx context.Context, id string, public bool) (*models.Site, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	update := bson.M{"$set": bson.M{"is_public": public, "updated_at": s.now().UTC()}}
	return s.findAndUpdate(ctx, oid, update)
}

func (s *SiteStore) findAndUpdate(ctx context.Context, oid primitive.ObjectID, update bson.M) (*models.Site, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc siteDocument
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	return doc.toSite()
}

// Delete removes a site and reports whether a document was deleted.
func (s *SiteStore) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("delete site: %w", err)
	}
	return res.DeletedCount > 0, nil
}
