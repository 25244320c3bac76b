//go:build !windows

package hdr

// StartNotificationPump is a no-op off Windows; no OS notifications
// will arrive, so the watcher idles until canceled.
func (w *Watcher) StartNotificationPump() {
	w.logger.Warn("OS display notifications unavailable on this platform")
}
