package sqldao

import (
	"context"

	"github.com/pkg/errors"

	"github.com/canonical/sqldao/internal/expr"
)

// Script runs a script of several statements on q, one statement at a time.
// Statements end at ";" unless a client side "DELIMITER x" line changes the
// delimiter, as needed for stored routine and trigger bodies. Run on a *DB
// the whole script is one transaction. Script stops at the first failing
// statement and reports how many statements ran before it.
func Script(ctx context.Context, q Querier, script string) (ran int, err error) {
	err = q.withSession(ctx, func(s *session) error {
		syntax := expr.Syntax(s.target.dialect.Syntax())
		stmts, err := expr.NewParser(syntax).SplitScript(script)
		if err != nil {
			return err
		}
		s.db.logger.Info("running script", "target", s.target.name, "statements", len(stmts))
		for i, stmt := range stmts {
			if _, err := s.exec(ctx, NewCommand(stmt)); err != nil {
				return errors.Wrapf(err, "script statement %d", i+1)
			}
			ran++
		}
		return nil
	})
	return ran, err
}
