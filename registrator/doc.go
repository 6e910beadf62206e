// Package registrator persists records into a split folder inside a
// transactional session.
//
// A Registrator is Closed until Open is called. While open, Register names each
// record through a layout.Namer, stores it with a record.Codec and buffers its
// Entry in memory. Close commits the buffer by atomically replacing the
// split's 0meta manifest; Abort drops the buffer and removes the files written
// during the session. Do wraps both so a failed session never commits:
//
//	err := reg.Do(func() error {
//		for _, rec := range records {
//			if err := reg.Register(rec); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
//
// Multi groups several registrators (one per split) and routes Register to
// the current one.
package registrator
