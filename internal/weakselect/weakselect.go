// Package weakselect implements the merge combinator used wherever two
// channels must be fanned into one but only one of them should be allowed
// to end the merged stream. The engine's outgoing fan-in (client-handle
// messages vs. server-response messages) and the pubsub notification
// handler's control/data merge both need the identical "A governs
// termination, B is best-effort" discipline, so it lives here once instead
// of being hand-rolled at each call site.
package weakselect

// Merge fans values from primary and secondary into the returned channel.
// The returned channel closes exactly when primary closes; secondary
// closing only stops further secondary values from being read; it does not
// close the merged channel.
func Merge[T any](primary, secondary <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		secondaryDone := secondary == nil
		for {
			if secondaryDone {
				v, ok := <-primary
				if !ok {
					return
				}
				out <- v
				continue
			}

			select {
			case v, ok := <-primary:
				if !ok {
					return
				}
				out <- v
			case v, ok := <-secondary:
				if !ok {
					secondaryDone = true
					continue
				}
				out <- v
			}
		}
	}()
	return out
}
