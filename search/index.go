package search

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"

	"chat-relay/domain"
)

// Index wraps a Bluge writer over delivered text messages. Image payloads
// are not indexed; everything else gets body, sender, conversation and
// language fields so queries can filter on any of them.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Hit is one search result, rebuilt from stored fields.
type Hit struct {
	ID           string
	Sender       string
	Body         string
	Conversation string
	Language     string
	At           time.Time
}

func OpenIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// Add indexes one record, keyed by message id so re-adds are idempotent.
func (i *Index) Add(record domain.Message) error {
	if record.Kind != domain.KindText {
		return nil
	}
	doc := bluge.NewDocument(record.ID.String()).
		AddField(bluge.NewTextField("body", record.Body).StoreValue()).
		AddField(bluge.NewKeywordField("sender", record.Sender).StoreValue()).
		AddField(bluge.NewKeywordField("conversation", string(record.Conversation())).StoreValue()).
		AddField(bluge.NewKeywordField("language", record.Language).StoreValue()).
		AddField(bluge.NewStoredOnlyField("at", []byte(strconv.FormatInt(record.CreatedAt.UnixNano(), 10))))
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a bounded query and materializes the stored fields of each hit.
func (i *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Error("Failed to close index reader", "error", err)
		}
	}()

	boolean := bluge.NewBooleanQuery()
	if q.Terms != "" {
		boolean.AddMust(bluge.NewMatchQuery(q.Terms).SetField("body"))
	} else {
		boolean.AddMust(bluge.NewMatchAllQuery())
	}
	if q.Conversation != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Conversation).SetField("conversation"))
	}
	if q.Sender != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Sender).SetField("sender"))
	}
	if q.Language != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Language).SetField("language"))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, boolean))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "body":
				hit.Body = string(value)
			case "sender":
				hit.Sender = string(value)
			case "conversation":
				hit.Conversation = string(value)
			case "language":
				hit.Language = string(value)
			case "at":
				if nanos, err := strconv.ParseInt(string(value), 10, 64); err == nil {
					hit.At = time.Unix(0, nanos).UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
