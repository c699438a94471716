package explorer

// apiResponse is the etherscan envelope. Result carries the payload as a
// string regardless of the queried action.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}
