// Command subdemo drives a single Subscription Set against the
// virtual-clock runtime, logging each step as it happens. It
// exists as a manual smoke test: a real deployment wires subscription.Set
// against a live dialog, timer service and transport instead.
package main

import (
	"flag"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loveapplication/sems/internal/runtime"
	"github.com/loveapplication/sems/sip"
	"github.com/loveapplication/sems/subscription"
)

func main() {
	eventPkg := flag.String("event", "presence", "event package to subscribe to")
	expires := flag.Int("expires", 3600, "Expires seconds returned in the 2xx")
	flag.Parse()

	log := sip.NewLogger(nil)
	dialog := runtime.NewFakeDialog("local-tag", "demo-call-id")
	clock := runtime.NewVirtualClock()
	queue := runtime.NewFakeQueue()
	metrics := subscription.NewMetrics(prometheus.NewRegistry())
	ss := subscription.NewSet(dialog, clock, queue, log, metrics, subscription.Config{})

	req, err := sip.NewRequest(sip.SUBSCRIBE, "sip:bob@biloxi.com", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build SUBSCRIBE")
	}
	req.GetHeader().Set("Event", *eventPkg)
	req.GetHeader().Set("CSeq", "1 SUBSCRIBE")
	ss.OnRequestSent(req)
	log.Info().Int("pending_timers", clock.Pending()).Msg("subscribe sent")

	reply := sip.NewResponse(sip.OK, "OK")
	reply.GetHeader().Set("To", `<sip:bob@biloxi.com>;tag=remote-tag`)
	reply.GetHeader().Set("Expires", strconv.Itoa(*expires))
	ss.OnReplyIn(req, reply)
	log.Info().Str("remote_tag", dialog.GetRemoteTag()).Msg("2xx processed")

	notify, err := sip.NewRequest(sip.NOTIFY, "sip:alice@atlanta.com", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build NOTIFY")
	}
	notify.GetHeader().Set("Event", *eventPkg)
	notify.GetHeader().Set("CSeq", "2 NOTIFY")
	notify.GetHeader().Set("Subscription-State", "active;expires="+strconv.Itoa(*expires))
	ss.OnRequestIn(notify)

	log.Info().Int("subscriptions", ss.Len()).Int("usages", dialog.Usages()).Msg("steady state")

	clock.Advance(float64(*expires))
	log.Info().Int("subscriptions", ss.Len()).Int("events_queued", queue.Len()).Msg("after expiry")
}
