// Package notifier delivers new-event notifications to external sinks.
//
// Each sink implements Notifier. Dispatch invokes the configured sinks in a fixed
// order (webhook, email, chat) and isolates failures: a sink that errors is logged
// and the remaining sinks still run. Sinks are only constructed when their
// configuration is complete, so an unconfigured sink is simply absent.
package notifier
