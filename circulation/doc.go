// Package circulation runs the lending desk: adding and removing catalog
// books, checking books out to users and taking them back with late fees.
//
// A Desk is built from the three repositories it coordinates:
//
//	desk, err := circulation.NewDesk(books, users, loans,
//	    circulation.WithLoanPeriod(14),
//	    circulation.WithDailyRate(0.25),
//	)
//	receipt, err := desk.Checkout(ctx, "U001", bookID)
//	...
//	receipt, err = desk.Return(ctx, "U001", bookID)
//	fmt.Println(receipt.Message)
//
// Desk methods are safe for concurrent use; circulation changes are
// serialized so a book can never be lent twice.
package circulation
