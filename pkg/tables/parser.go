package tables

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser reads decoding-table files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a table file parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(TablesLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse parses a table file from a reader. name only labels error positions.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	return f, nil
}

// ParseString parses a table file from a string.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	return f, nil
}

// ParseFile parses a table file from a path.
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("tables: open %s: %w", filename, err)
	}
	defer file.Close()

	return p.Parse(filename, file)
}
