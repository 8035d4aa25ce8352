package classify

// lexicons hold the per-category terms the scanner looks for. Entries are
// in normalized form: lowercase, no apostrophes (see normalize). Entries
// with a space match as whole phrases and weigh more than single words.
//
// Curation matters more than coverage here. Ambiguous bare words stay out:
// "return" alone says nothing ("return policy" is a question, "return my
// blender" is an errand), and bare "address" appears in more rule questions
// than errands, so each side lists its own phrasings instead.
var lexicons = map[Category][]string{
	CategoryFAQ: {
		// Policy and procedure vocabulary.
		"policy",
		"policies",
		"warranty",
		"guarantee",
		"faq",
		"shipping",
		"delivery",
		"hours",
		"support",
		"contact",
		"fee",
		"fees",
		"privacy",
		"track",
		"tracking",
		"expire",
		"expires",
		"expiration",

		// Question openers and known policy topics.
		"how do i",
		"how does",
		"how long",
		"how much",
		"what is your",
		"whats your",
		"return policy",
		"refund policy",
		"can i return",
		"can i exchange",
		"cancellation policy",
		"price match",
		"business hours",
		"customer support",
		"help center",
		"do you ship",
		"shipping cost",
		"delivery time",
	},

	CategoryBusinessRule: {
		// Eligibility vocabulary.
		"eligible",
		"eligibility",
		"allowed",
		"permitted",
		"qualify",
		"qualifies",
		"qualified",
		"exception",
		"exceptions",
		"restriction",
		"restrictions",
		"tier",
		"loyalty",
		"shipped",

		// Conditional phrasing and known rule scenarios.
		"can i still",
		"am i allowed",
		"is it possible",
		"is it too late",
		"what happens if",
		"even though",
		"eligible for",
		"qualify for",
		"already shipped",
		"has shipped",
		"after it ships",
		"past 30 days",
		"outside the window",
		"change my address",
		"change the address",
		"update my address",
		"change my order",
		"modify my order",
		"gold member",
		"store credit",
	},

	CategoryTransactional: {
		// Commerce verbs and nouns.
		"buy",
		"purchase",
		"order",
		"orders",
		"cancel",
		"find",
		"search",
		"browse",
		"cart",
		"checkout",
		"price",
		"cheap",
		"cheapest",
		"stock",
		"refund",
		"addresses",
		"reorder",

		// Errand phrasings.
		"show me",
		"find me",
		"looking for",
		"do you have",
		"do you sell",
		"i want to",
		"add to cart",
		"place an order",
		"my order",
		"my orders",
		"my addresses",
		"gift card",
		"in stock",
		"return my",
		"return this",
		"return it",
		"send back",
		"default address",
	},
}
