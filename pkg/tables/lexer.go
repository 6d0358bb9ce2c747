package tables

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// TablesLexer tokenizes decoding-table files.
var TablesLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "KwEvent", Pattern: `\bevent\b`},
	{Name: "KwFamily", Pattern: `\bfamily\b`},
	{Name: "KwPin", Pattern: `\bpin\b`},

	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})
