/*
Package events provides in-process event distribution for Drover.

The Broker fans cluster events (job transitions, leadership changes,
scaling actions) out to any number of subscribers. The broker buffers
up to 100 published events; Publish waits only while that buffer is
full and the broker is running. Delivery to a subscriber whose own
buffer is full is dropped.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for event := range sub {
			fmt.Println(event.Type, event.Message)
		}
	}()

	broker.Publish(events.New(events.EventJobQueued, "job queued", map[string]string{
		"job_id": "cleanup",
	}))
*/
package events
