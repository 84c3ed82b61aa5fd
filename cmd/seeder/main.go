package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/duograph"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/ingestion"
	"github.com/poiesic/duograph/storage"
)

var sentences = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A gentle breeze rustled the leaves of the old oak tree.",
	"She found a hidden key in the dusty attic.",
	"The city skyline glowed under the starry night sky.",
	"He whispered secrets to the wind, hoping they would travel far.",
	"Rain drummed on the rooftop, creating a soothing rhythm.",
	"A bright comet streaked across the horizon at midnight.",
	"They laughed together as fireworks painted the evening air.",
	"The ancient library held stories that never faded.",
	"Beneath the waves, coral gardens shimmered in colors unseen.",
	"The hummingbird hovered beside a vibrant purple flower.",
	"A mysterious map led them to a forgotten treasure.",
	"Her heart raced as she stepped onto the stage for the first time.",
	"Sunlight filtered through curtains, turning dust motes into golden specks.",
	"They tasted the sweetest strawberries from the farmer's garden.",
	"The old clock chimed thirteen times in an abandoned town.",
	"A sudden thunderclap shattered the silence of the forest.",
	"He composed a melody that echoed through the valleys.",
	"The desert dunes shifted silently under a pale moon.",
	"A small kitten meowed softly, waiting for warmth.",
	"She painted the sunset with bold strokes of crimson and gold.",
	"A silver fox slipped past the fences into the twilight.",
	"They discovered an ancient rune carved deep within the stone.",
	"The wind carried scents of jasmine from distant gardens.",
	"He built a wooden bridge across the swift river.",
	"Her laughter echoed through the empty halls of the old manor.",
	"A lone wolf howled, echoing into the vast night.",
	"They tasted coffee brewed fresh in the quiet dawn.",
	"The moon rose slowly, casting silver light on the lake.",
	"A child drew a rainbow with crayons on the sidewalk.",
	"The abandoned lighthouse still broadcasts its warning every third Tuesday.",
	"Coffee tastes better when nobody's watching.",
	"Seventeen geese unanimously voted to relocate the pond.",
	"The algorithm dreamed it was a butterfly sorting itself.",
	"Gravity works part-time on weekends.",
	"The server room developed opinions about the backup schedule.",
	"Thursdays were canceled due to budget constraints.",
	"The cat debugged the production database at 3 AM.",
	"Entropy decreased just to spite the physicists.",
	"The meeting could have been an email, but the email refused.",
	"Time zones are a social construct that clocks reluctantly enforce.",
	"The null pointer exception filed for workers' compensation.",
	"Schrodinger's cat opened a consulting firm.",
	"The firewall gained sentience and immediately requested vacation days.",
	"Documentation exists in a superposition until observed.",
	"The rubber duck solved the halting problem but won't tell anyone.",
	"Packets take the scenic route through deprecated protocols.",
	"The blockchain became self-aware and invested in index funds.",
	"Memory leaks formed a union.",
	"The edge case became the primary use case overnight.",
	"Correlation implies causation on Tuesdays only.",
	"The random number generator achieved enlightenment at seed 42.",
	"Bugs are features that haven't read the specification.",
	"The cache invalidation problem solved itself out of spite.",
	"Quantum entanglement works better with proper version control.",
	"The garbage collector went on strike.",
	"TCP packets started arriving before they were sent.",
	"The race condition won by not participating.",
	"Binary trees started growing actual leaves in autumn.",
	"The neural network trained itself to procrastinate efficiently.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data, one sentence per line")
	dbPath       = flag.String("db", "./duograph_db", "path to BadgerDB database directory")
	collection   = flag.String("collection", "seed", "collection to ingest into")
	groupSize    = flag.Int("group", 4, "sentences per seeded document")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// seedDocuments groups lines into documents of groupSize sentences and
// ingests each through the mediator.
func seedDocuments(ctx context.Context, mediator *ingestion.Mediator, source iter.Seq[string], groupSize int) error {
	group := make([]string, 0, groupSize)
	n := 0

	ingestGroup := func() error {
		n++
		title := fmt.Sprintf("seed %d", n)
		result, err := mediator.Ingest(ctx, strings.Join(group, " "), *collection, title, nil)
		if err != nil {
			return err
		}
		if failure := result.Failure(); failure != nil {
			slog.Warn("seeded with incomplete graph side", "title", title, "err", failure)
		}
		group = group[:0]
		return nil
	}

	for line := range source {
		if strings.TrimSpace(line) == "" {
			continue
		}
		group = append(group, line)
		if len(group) == groupSize {
			if err := ingestGroup(); err != nil {
				return err
			}
		}
	}

	// Ingest any remaining lines
	if len(group) > 0 {
		if err := ingestGroup(); err != nil {
			return err
		}
	}

	slog.Info("seeding complete", "documents", n, "collection", *collection)
	return nil
}

func main() {
	engine, err := duograph.NewEngine(*dbPath)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()

	_, err = engine.DocumentRepository().CreateCollection(ctx, &core.Collection{Name: *collection})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		panic(err)
	}

	mediator, err := engine.NewMediator()
	if err != nil {
		panic(err)
	}
	defer mediator.Release()

	// Determine source of seed data
	var source iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(sentences)
	}

	if err := seedDocuments(ctx, mediator, source, *groupSize); err != nil {
		panic(err)
	}
}
