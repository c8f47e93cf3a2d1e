// Package notifier delivers texts to the configured Telegram chat.
//
// Delivery is synchronous: the poll loop waits for the outcome so it can decide
// whether the message counts as "sent". Each call is rate limited, retried with
// jittered exponential backoff and bounded by a per-attempt timeout.
package notifier
