package isupport

type Prefixes struct {
	Letters []rune
	Symbols []rune
}

func (p *Prefixes) LetterToSymbol(letter rune) (retval rune, ok bool) {
	for index, availableLetter := range p.Letters {
		if availableLetter == letter && index < len(p.Symbols) {
			return p.Symbols[index], true
		}
	}
	return
}

func (p *Prefixes) SymbolToLetter(symbol rune) (retval rune, ok bool) {
	for index, availableSymbol := range p.Symbols {
		if availableSymbol == symbol && index < len(p.Letters) {
			return p.Letters[index], true
		}
	}
	return
}

// IsLetter reports whether letter is a channel user mode, which always takes
// a nickname as parameter.
func (p *Prefixes) IsLetter(letter rune) bool {
	_, ok := p.LetterToSymbol(letter)
	return ok
}
