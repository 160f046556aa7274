package offline

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const (
	PushTitle        = "Naija5Fest Update"
	PushDefaultBody  = "New update from Naija5Fest!"
	PushTag          = "naija5fest-notification"
	NotificationIcon = "/favicon.png"

	ActionView    = "view"
	ActionDismiss = "dismiss"

	PeriodicSyncTournamentData = "update-tournament-data"
)

// PushNotification builds the notification shown for a push payload.
func PushNotification(payload []byte) Notification {
	body := PushDefaultBody
	if payload != nil {
		body = string(payload)
	}
	return Notification{
		Body:    body,
		Icon:    NotificationIcon,
		Badge:   NotificationIcon,
		Vibrate: []int{200, 100, 200},
		Tag:     PushTag,
		Actions: []NotificationAction{
			{Action: ActionView, Title: "View Details", Icon: NotificationIcon},
			{Action: ActionDismiss, Title: "Dismiss", Icon: NotificationIcon},
		},
	}
}

// HandlePush shows a notification for a pushed message. A nil payload gets
// the default body.
func (c *Controller) HandlePush(ctx context.Context, payload []byte) error {
	c.logger.Info("push notification received")
	return c.notifier.Show(ctx, PushTitle, PushNotification(payload))
}

// ClickResult tells the host what to do after a notification click.
type ClickResult struct {
	OpenWindow bool
	URL        string
}

// HandleNotificationClick maps a notification action to a window to open.
// Dismiss closes the notification; anything else opens the site root.
func (c *Controller) HandleNotificationClick(action string) ClickResult {
	c.logger.Info("notification clicked", zap.String("action", action))
	if action == ActionDismiss {
		return ClickResult{}
	}
	return ClickResult{OpenWindow: true, URL: "/"}
}

// HandlePeriodicSync handles periodic background sync tags. The tournament
// data tag refreshes the configured URLs into the dynamic partition; failures
// are logged per URL. Unknown tags are ignored.
func (c *Controller) HandlePeriodicSync(ctx context.Context, tag string) error {
	c.logger.Info("periodic sync triggered", zap.String("tag", tag))
	if tag != PeriodicSyncTournamentData {
		return nil
	}

	for _, raw := range c.cfg.TournamentDataURLs {
		u, err := c.resolve(raw)
		if err != nil {
			c.logger.Error("error updating tournament data", zap.String("url", raw), zap.Error(err))
			continue
		}
		if err := c.refresh(ctx, u.String()); err != nil {
			c.logger.Error("error updating tournament data", zap.String("url", u.String()), zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) refresh(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.network.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	entry, err := EntryFromResponse(req, resp, c.now())
	if err != nil {
		return err
	}
	return c.put(ctx, c.cfg.DynamicName, RequestKey(http.MethodGet, req.URL), entry)
}
