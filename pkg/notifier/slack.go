/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notifier

import (
	"context"

	"github.com/slack-go/slack"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// SlackNotifier posts to the case's chat thread handle (a Slack channel
// or thread timestamp) using the configured bot token.
type SlackNotifier struct {
	client *slack.Client
}

func NewSlackNotifier(botToken string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(botToken)}
}

func (n *SlackNotifier) Deliver(ctx context.Context, msg Notification) error {
	_, _, err := n.client.PostMessageContext(ctx, msg.ChatThreadHandle,
		slack.MsgOptionText(msg.Subject+"\n"+msg.Body, false),
	)
	if err != nil {
		return &RetryableError{Cause: orderrs.FailedToWithDetails("deliver slack notification", "notifier", msg.CaseID, err)}
	}
	return nil
}
