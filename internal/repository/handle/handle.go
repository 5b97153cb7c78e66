package handle

import (
	"context"
	"strings"

	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type (
	HandleRepo struct {
		collection *mongo.Collection
	}
)

func NewHandleRepo(db *mongo.Database) *HandleRepo {
	return &HandleRepo{
		collection: db.Collection("handles"),
	}
}

func aclEntry(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func (r *HandleRepo) Create(ctx context.Context, v *model.SealedValue) error {
	_, err := r.collection.InsertOne(ctx, v)
	return err
}

func (r *HandleRepo) GetByHandle(ctx context.Context, h model.Handle) (*model.SealedValue, error) {
	filter := bson.M{
		"_id": h.Hex(),
	}

	var v model.SealedValue
	err := r.collection.FindOne(ctx, filter).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &v, nil
}

// Allow adds grantee to the handle's ACL. It reports false if the handle
// does not exist.
func (r *HandleRepo) Allow(ctx context.Context, h model.Handle, grantee common.Address) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": h.Hex()},
		bson.M{"$addToSet": bson.M{"acl": aclEntry(grantee)}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *HandleRepo) IsAllowed(ctx context.Context, h model.Handle, who common.Address) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"_id": h.Hex(),
		"acl": aclEntry(who),
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
