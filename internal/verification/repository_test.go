package verification

import (
	"strings"
	"testing"
)

func TestWhereClauseEscapesSearchWildcards(t *testing.T) {
	where, args := whereClause(ListFilter{Search: `50%_off\`})
	if !strings.Contains(where, "ESCAPE") {
		t.Fatalf("expected an ESCAPE clause, got %s", where)
	}
	if len(args) != 1 || args[0] != `%50\%\_off\\%` {
		t.Fatalf("unexpected search argument %v", args)
	}
}

func TestWhereClauseWithoutFilters(t *testing.T) {
	where, args := whereClause(ListFilter{})
	if where != "" || len(args) != 0 {
		t.Fatalf("expected no conditions, got %q %v", where, args)
	}
}
