package termgen

// Static vocabularies backing the weighted strategies (spec.md §4.C). These
// lists are deliberately small and representative rather than exhaustive;
// the weighting policy, not vocabulary size, is what spec.md constrains.

var firstNames = []string{
	"James", "Mary", "Robert", "Maria", "Michael", "Linda", "William", "Susan",
	"David", "Karen", "Richard", "Nancy", "Joseph", "Lisa", "Thomas", "Betty",
	"Charles", "Sandra", "Daniel", "Ashley", "Matthew", "Kimberly", "Anthony",
	"Donna", "Mark", "Carol",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez",
}

// ethnicSurnames is a disjoint subset empirically observed to return a high
// yield of distinct rows relative to generic surnames (spec.md §4.C).
var ethnicSurnames = []string{
	"Nguyen", "Patel", "Kim", "Tran", "Singh", "Chen", "Park", "Ahmed",
	"Gupta", "Wang", "Kumar", "Hussain",
}

var streetNames = []string{
	"Oak", "Maple", "Cedar", "Elm", "Pine", "Main", "Grove", "Hill", "Lake",
	"River", "Park", "Sunset", "Valley", "Ridge", "Meadow", "Spring",
}

var streetSuffixes = []string{
	"St", "Ave", "Blvd", "Dr", "Ln", "Rd", "Ct", "Way", "Trail", "Pkwy",
}

var geoTerms = []string{
	"North", "South", "East", "West", "Heights", "Hills", "Creek", "Estates",
}

var neighborhoods = []string{
	"Westlake", "Hyde Park", "Tarrytown", "Barton Hills", "Zilker",
	"Allandale", "Rosedale", "Clarksville", "Crestview", "Highland",
}

var propertyTypes = []string{
	"Residential", "Commercial", "Vacant Land", "Multifamily", "Condo",
	"Industrial", "Agricultural",
}

// businessSuffixes mirrors common.DedupConfig.BusinessSuffixes; it is also
// used generatively here to compose company-style candidate terms.
var businessSuffixes = []string{
	"LLC", "Inc", "Corp", "Ltd", "Trust", "Holding", "Properties", "Partner",
	"Develop", "Company", "Real", "Assoc",
}
