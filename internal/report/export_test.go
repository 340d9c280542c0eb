package report

// ParseRankName exposes rank artifact name parsing to the tests.
var ParseRankName = parseRankName
