package logincode

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Code is a single-use login credential. Lifecycle: minted unused, flipped to
// used exactly once at first successful redemption, immutable after that.
type Code struct {
	Code      string     `bson:"code" json:"code"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	Used      bool       `bson:"used" json:"used"`
	UsedAt    *time.Time `bson:"used_at" json:"used_at"`
}

const (
	codeCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultLength = 8
)

type Resolver struct {
	col *mongo.Collection
}

func NewResolver(col *mongo.Collection) *Resolver {
	return &Resolver{col: col}
}

// Redeem maps a presented code to a user identity. The code text itself
// becomes the user id. A code that does not exist, or was already redeemed,
// yields ok=false; err reports store failures only.
//
// The used flag flips in the same conditional update that matches the code,
// so concurrent redemptions of one code cannot both succeed.
func (r *Resolver) Redeem(ctx context.Context, code string) (userID string, ok bool, err error) {
	now := time.Now().UTC()
	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"code": code, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_at": now}},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redeem code: %w", err)
	}
	return code, true, nil
}

// Mint generates and stores n unused codes of the given length, returning
// them. Collisions with existing codes are regenerated thanks to the unique
// index on code.
func (r *Resolver) Mint(ctx context.Context, n, length int) ([]Code, error) {
	if length <= 0 {
		length = DefaultLength
	}
	now := time.Now().UTC()

	minted := make([]Code, 0, n)
	for i := 0; i < n; i++ {
		var inserted bool
		for attempt := 0; attempt < 5; attempt++ {
			text, err := generate(length)
			if err != nil {
				return minted, err
			}
			doc := Code{Code: text, CreatedAt: now, Used: false}
			if _, err := r.col.InsertOne(ctx, doc); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					continue
				}
				return minted, fmt.Errorf("mint code: %w", err)
			}
			minted = append(minted, doc)
			inserted = true
			break
		}
		if !inserted {
			return minted, fmt.Errorf("mint code: could not allocate a unique code of length %d", length)
		}
	}
	return minted, nil
}

// UnusedCount reports how many codes are still redeemable.
func (r *Resolver) UnusedCount(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"used": false})
	if err != nil {
		return 0, fmt.Errorf("count unused codes: %w", err)
	}
	return n, nil
}

// List returns every code, for export.
func (r *Resolver) List(ctx context.Context) ([]Code, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer cur.Close(ctx)

	var codes []Code
	if err := cur.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

func generate(length int) (string, error) {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		out[i] = codeCharset[n.Int64()]
	}
	return string(out), nil
}

// WriteCSV writes codes with the columns Code, Created At, Used, Used At.
func WriteCSV(w io.Writer, codes []Code) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Code", "Created At", "Used", "Used At"}); err != nil {
		return err
	}
	for _, c := range codes {
		usedAt := ""
		if c.UsedAt != nil {
			usedAt = c.UsedAt.Format(time.RFC3339)
		}
		used := "False"
		if c.Used {
			used = "True"
		}
		if err := cw.Write([]string{c.Code, c.CreatedAt.Format(time.RFC3339), used, usedAt}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSVFile writes codes to dir/login_codes_<timestamp>.csv and returns
// the path.
func ExportCSVFile(dir string, codes []Code) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("login_codes_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteCSV(f, codes); err != nil {
		return "", err
	}
	return path, nil
}
