package logincode

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestGenerate_LengthAndCharset(t *testing.T) {
	for _, length := range []int{4, 8, 12} {
		code, err := generate(length)
		if err != nil {
			t.Fatalf("generate(%d): %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("generate(%d): got length %d", length, len(code))
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeCharset, ch) {
				t.Fatalf("generate(%d): unexpected character %q in %q", length, ch, code)
			}
		}
	}
}

func TestWriteCSV_Columns(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	usedAt := created.Add(2 * time.Hour)
	codes := []Code{
		{Code: "XYZ999", CreatedAt: created, Used: false},
		{Code: "ABC123", CreatedAt: created, Used: true, UsedAt: &usedAt},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, codes); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Code,Created At,Used,Used At" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "XYZ999,") || !strings.Contains(lines[1], ",False,") {
		t.Fatalf("unexpected unused row %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "ABC123,") || !strings.Contains(lines[2], ",True,") {
		t.Fatalf("unexpected used row %q", lines[2])
	}
}

func openTestResolver(t *testing.T) *Resolver {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping mongo-backed resolver tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo connect: %v", err)
	}
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		_ = client.Disconnect(cctx)
	})

	col := client.Database("studychat_test").Collection(fmt.Sprintf("codes_%d", time.Now().UnixNano()))
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		t.Fatalf("create index: %v", err)
	}
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		_ = col.Drop(cctx)
	})

	return NewResolver(col)
}

func TestRedeem_SucceedsExactlyOnce(t *testing.T) {
	r := openTestResolver(t)
	ctx := context.Background()

	minted, err := r.Mint(ctx, 1, 6)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	code := minted[0].Code

	uid, ok, err := r.Redeem(ctx, code)
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if !ok || uid != code {
		t.Fatalf("first redeem: ok=%v uid=%q, want ok=true uid=%q", ok, uid, code)
	}

	_, ok, err = r.Redeem(ctx, code)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if ok {
		t.Fatalf("second redeem of %q must fail", code)
	}
}

func TestRedeem_UnknownCode(t *testing.T) {
	r := openTestResolver(t)

	_, ok, err := r.Redeem(context.Background(), "NOPE01")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if ok {
		t.Fatalf("unknown code must not redeem")
	}
}

func TestMintAndUnusedCount(t *testing.T) {
	r := openTestResolver(t)
	ctx := context.Background()

	minted, err := r.Mint(ctx, 5, 8)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(minted) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(minted))
	}
	for _, c := range minted {
		if len(c.Code) != 8 || c.Used {
			t.Fatalf("unexpected minted code %+v", c)
		}
	}

	n, err := r.UnusedCount(ctx)
	if err != nil {
		t.Fatalf("unused count: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 unused, got %d", n)
	}

	if _, _, err := r.Redeem(ctx, minted[0].Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	n, err = r.UnusedCount(ctx)
	if err != nil {
		t.Fatalf("unused count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 unused after redeem, got %d", n)
	}
}
