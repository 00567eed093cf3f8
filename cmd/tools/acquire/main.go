package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/unifinance/funding-radar/internal/ai"
	"github.com/unifinance/funding-radar/internal/ingest"
	"github.com/unifinance/funding-radar/internal/models"
)

// Runs one acquisition cycle from the command line and prints the merged
// list, for poking at source configuration without a running server.
func main() {
	category := flag.String("category", "", "filter by funding type (scholarship, bursary, grant, prize, hardship-fund, loan)")
	sortBy := flag.String("sort", "relevance", "sort order: relevance or deadline")
	timeout := flag.Duration("timeout", 90*time.Second, "overall cycle timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	registry, err := ingest.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	aiClient := ai.NewClient(os.Getenv("GEMINI_ENDPOINT"), os.Getenv("GEMINI_API_KEY"))
	acquirer := ingest.NewAcquirer(ingest.BuildSources(registry, aiClient))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opps := acquirer.Run(ctx, nil, nil)
	opps = ingest.Filter(opps, *category)
	if *sortBy == "deadline" {
		ingest.SortByDeadline(opps)
	} else {
		ingest.SortByRelevance(opps)
	}

	render(opps)
}

func render(opps []models.Opportunity) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Title", "Provider", "Amount", "Type", "Deadline", "Score", "New"})

	for i, opp := range opps {
		isNew := ""
		if opp.IsNew {
			isNew = "yes"
		}
		t.AppendRow(table.Row{
			i + 1,
			ingest.TruncateText(opp.Title, 48),
			ingest.TruncateText(opp.Provider, 28),
			opp.Amount,
			opp.Type,
			opp.Deadline.Format("2006-01-02"),
			opp.RelevanceScore,
			isNew,
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}
