package dto

// ProofOptions describes how and by whom a proof is made.
type ProofOptions struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	Cryptosuite        string `json:"cryptosuite,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	Domain             string `json:"domain,omitempty"`
}

// Proof represents a Linked Data Proof for a Verifiable Credential.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	Cryptosuite        string `json:"cryptosuite,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	Domain             string `json:"domain,omitempty"`
	JWS                string `json:"jws,omitempty"`
	ProofValue         string `json:"proofValue,omitempty"`
}

// Options returns the metadata of p without its signature value.
func (p Proof) Options() ProofOptions {
	return ProofOptions{
		Type:               p.Type,
		Created:            p.Created,
		VerificationMethod: p.VerificationMethod,
		ProofPurpose:       p.ProofPurpose,
		Cryptosuite:        p.Cryptosuite,
		Challenge:          p.Challenge,
		Domain:             p.Domain,
	}
}
