package attachments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSCounter counts the objects stored under <prefix>/<ledgerEntryID>/ in a bucket.
type GCSCounter struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSCounter uses application default credentials unless credentialsJSON is set.
func NewGCSCounter(ctx context.Context, bucket, prefix, credentialsJSON string) (*GCSCounter, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("GCS bucket is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSCounter{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCSCounter) CountAttachments(ctx context.Context, ledgerEntryID string) (int, error) {
	q := &storage.Query{Prefix: objectPrefix(g.prefix, ledgerEntryID)}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return 0, fmt.Errorf("select attrs: %w", err)
	}

	it := g.client.Bucket(g.bucket).Objects(ctx, q)
	n := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("list attachments of %s: %w", ledgerEntryID, err)
		}
		// Folder placeholders created by the console are not documents.
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		n++
	}
	return n, nil
}

func (g *GCSCounter) Close() error {
	return g.client.Close()
}

func objectPrefix(prefix, ledgerEntryID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ledgerEntryID + "/"
	}
	return prefix + "/" + ledgerEntryID + "/"
}
