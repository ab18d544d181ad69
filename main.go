// vizchat is a terminal front end for the analysis agent: it ingests a
// tabular dataset, builds an initial dashboard of aggregated analysis cards,
// then runs a chat loop in which the model proposes validated actions
// against the session state.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"vizchat/agent"
)

func main() {
	dataPath := flag.String("data", "", "path to a .csv or .xls data file")
	mysqlDSN := flag.String("mysql", "", "MySQL DSN to load from instead of a file")
	mysqlQuery := flag.String("query", "", "query to run against the MySQL source")
	flag.Parse()

	if *dataPath == "" && *mysqlDSN == "" {
		fmt.Fprintln(os.Stderr, "usage: vizchat -data file.csv | -mysql dsn -query sql")
		os.Exit(2)
	}

	app := NewApp()
	ctx := context.Background()

	if err := app.Startup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	var cards []agent.AnalysisCard
	var err error
	if *mysqlDSN != "" {
		if *mysqlQuery == "" {
			fmt.Fprintln(os.Stderr, "-mysql requires -query")
			os.Exit(2)
		}
		cards, err = app.LoadMySQL(ctx, *mysqlDSN, *mysqlQuery)
	} else {
		cards, err = app.LoadFile(ctx, *dataPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	if len(cards) == 0 {
		fmt.Println("No viable analyses were found for this dataset. You can still ask questions about it.")
	} else {
		fmt.Printf("Initial dashboard (%d cards):\n", len(cards))
		for _, card := range cards {
			printCard(os.Stdout, card)
		}
	}

	runChatLoop(ctx, app)
}

func runChatLoop(ctx context.Context, app *App) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("\nAsk about your data (\"exit\" to quit):")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}

		result, err := app.Ask(ctx, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		printTurn(os.Stdout, app, result)
	}
}

func printTurn(w io.Writer, app *App, result *agent.TurnResult) {
	for _, msg := range result.Messages {
		if msg.Role != "assistant" {
			continue
		}
		fmt.Fprintln(w, msg.Content)
		if msg.CardID != "" {
			for _, card := range app.orchestrator.Cards() {
				if card.ID == msg.CardID {
					printCard(w, card)
				}
			}
		}
	}
	if result.AwaitingClarification != nil {
		fmt.Fprintln(w, "(answer the question above to continue)")
	}
}

func printCard(w io.Writer, card agent.AnalysisCard) {
	fmt.Fprintf(w, "\n== %s [%s] ==\n", card.Plan.Title, card.DisplayChartType)
	if card.Plan.Description != "" {
		fmt.Fprintln(w, card.Plan.Description)
	}
	for i, row := range card.Rows {
		if i >= 10 {
			fmt.Fprintf(w, "  ... %d more rows\n", len(card.Rows)-i)
			break
		}
		fmt.Fprintf(w, "  %v\n", row)
	}
	if card.Summary != "" {
		fmt.Fprintln(w, card.Summary)
	}
	fmt.Fprintln(w)
}
