package data

import "errors"

var (
	ErrNoAccessions       = errors.New("no accessions provided")
	ErrNoEntries          = errors.New("no InterPro entries provided")
	ErrNoDomains          = errors.New("no domain results available")
	ErrNoRanges           = errors.New("no valid domain ranges found")
	ErrNoSequences        = errors.New("no domain sequences extracted")
	ErrNoStructure        = errors.New("no structure available")
	ErrInvalidStructure   = errors.New("not a valid PDB structure")
	ErrNoAtomsInRange     = errors.New("no atoms in requested range")
	ErrNoStructuresFound  = errors.New("no structures processed successfully")
	ErrRecordNotFound     = errors.New("record not found")
	ErrEditConflict       = errors.New("edit conflict, please try again")
	ErrJobNotFinished     = errors.New("job has not finished yet")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRunCanceled        = errors.New("run canceled")
)
