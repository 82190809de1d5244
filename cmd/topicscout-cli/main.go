package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/topicscout/topicscout/client"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "TopicScout server base URL")
	keyword := flag.String("keyword", "", "Keyword to analyze")
	flag.Parse()

	if *keyword == "" {
		fmt.Fprintln(os.Stderr, "usage: topicscout-cli -keyword <keyword> [-server <url>]")
		os.Exit(1)
	}

	c := client.New(*server)
	c.Start(*keyword, nil)

	// show the staged progress readout while the request is in flight
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Wait()
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-done:
			break poll
		case <-ticker.C:
			fmt.Printf("\r[%3.0f%%] %-45s", c.Progress(), c.CurrentStepText())
		}
	}
	fmt.Printf("\r[%3.0f%%] %-45s\n", c.Progress(), c.CurrentStepText())

	if c.State() == client.StateFailed {
		fmt.Fprintln(os.Stderr, "analysis failed:", c.Err())
		os.Exit(1)
	}

	analysis, draft, source := c.Result()

	fmt.Println()
	fmt.Println(draft)
	fmt.Println()

	if source != nil {
		fmt.Printf("Based on %d posts for %q\n", source.TotalPosts, source.SearchQuery)
	}
	if analysis != nil {
		fmt.Printf("Sentiment: %s (%.2f), avg score %d, %d comments\n",
			analysis.Sentiment.OverallSentiment,
			analysis.Sentiment.PolarityScore,
			analysis.EngagementMetrics.AvgScore,
			analysis.EngagementMetrics.TotalComments)
	}
}
