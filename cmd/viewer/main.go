// Command viewer dumps the stored history of one conversation as a table.
// It opens the database read-only, so it can run next to a live server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
	"chat-relay/internal"
	"chat-relay/repositories"
)

func main() {
	conversation := flag.String("conversation", string(domain.PublicConversation),
		"conversation key to dump (room id, 'a|b' pair, or general)")
	limit := flag.Int("limit", 50, "maximum number of messages")
	flag.Parse()

	_ = godotenv.Load()
	path := os.Getenv("BADGER_FILEPATH")
	if path == "" {
		log.Fatal("BADGER_FILEPATH is required")
	}

	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repository := repositories.NewMessageRepository(db, internal.GetLoggerFromString("ERROR"))
	records, err := repository.Recent(domain.ConversationKey(*conversation), *limit)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}

	color.Green.Printf("%d message(s) in %q\n", len(records), *conversation)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Kind", "Lang", "Body"})
	for _, record := range records {
		body := record.Body
		if record.Kind == domain.KindImage {
			body = fmt.Sprintf("<image %d bytes>", len(record.Body))
		}
		table.Append([]string{
			record.CreatedAt.Format(time.RFC3339),
			record.Sender,
			string(record.Kind),
			record.Language,
			body,
		})
	}
	table.Render()
}
