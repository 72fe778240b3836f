// Package courier provides an outbound submission delivery engine for Go.
//
// Courier is a library, not a service. Import it into your application to
// forward form submissions to per-project REST endpoints (hooks), with a
// durable delivery log per (hook, submission) pair, automatic retries on
// transient failures, and recovery sweeps for work orphaned by crashes.
//
// Key features:
//   - Per-project hook registry with JSON and XML payloads
//   - Field subsetting and JSON payload templates
//   - Durable delivery log doubling as the work queue (no external broker)
//   - Backoff retries capped at MaxRetries+1 attempts, manual retry beyond
//   - Egress policy guard against internal destinations
//   - Composable store pattern (Postgres, Memory)
//
// Quick start:
//
//	c, err := courier.New(
//	    courier.WithStore(memoryStore),
//	    courier.WithSubmissionStore(submissionStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop(ctx)
//
//	h, _ := c.Hooks().Create(ctx, hook.Input{
//	    ProjectID: "proj_1",
//	    Name:      "crm sync",
//	    Endpoint:  "https://example.com/intake",
//	})
//
//	c.Dispatch(ctx, "proj_1", submissionID, dispatch.KindSubmit)
package courier
