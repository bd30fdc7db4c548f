package chat

import (
	"fmt"
	"time"

	"github.com/isdb-fas/fasdesk/internal/model"
)

// WelcomeMessages returns the default list shown while no conversation is current.
func WelcomeMessages(now time.Time) []model.Message {
	ago := func(min int) time.Time { return now.Add(-time.Duration(min) * time.Minute) }

	return []model.Message{
		{
			ID:        "1",
			Content:   "Hello! I'd like to understand more about FAS 4 and how it applies to Ijarah contracts.",
			Sender:    model.SenderUser,
			Timestamp: ago(15),
			Standard:  model.FAS4,
		},
		{
			ID: "2",
			Content: "FAS 4 covers Ijarah and Ijarah Muntahia Bittamleek. It defines Ijarah as a transfer of the right to use " +
				"an asset for an agreed period in exchange for an agreed consideration. The leased asset is recognized at cost " +
				"and depreciated over its useful life, and rental income is recognized on a straight-line basis over the lease term.",
			Sender:    model.SenderSystem,
			Timestamp: ago(14),
		},
		{
			ID:        "3",
			Content:   "What's the difference between Ijarah and Ijarah Muntahia Bittamleek?",
			Sender:    model.SenderUser,
			Timestamp: ago(10),
			Standard:  model.FAS4,
		},
		{
			ID: "4",
			Content: "Ijarah is a simple lease where the asset returns to the lessor at the end of the term, while Ijarah Muntahia " +
				"Bittamleek (IMB) includes a promise to transfer ownership to the lessee.\n\nIn IMB, ownership can pass through:\n" +
				"1. Gift (Hibah)\n2. Sale for a token consideration or another amount specified in the lease\n" +
				"3. Gradual transfer of ownership during the lease term",
			Sender:    model.SenderSystem,
			Timestamp: ago(9),
		},
		{
			ID:        "5",
			Content:   "Here's a sample Ijarah contract template. How should we account for maintenance expenses in this type of contract?",
			Sender:    model.SenderUser,
			Timestamp: ago(5),
			Standard:  model.FAS4,
			Attachments: []model.FileAttachment{{
				ID:           "att1",
				Name:         "ijarah_contract_template.pdf",
				Type:         "application/pdf",
				Size:         2457600,
				URL:          "/sample-files/ijarah_contract_template.pdf",
				ThumbnailURL: "/sample-files/pdf-thumbnail.png",
			}},
		},
		{
			ID: "6",
			Content: "According to FAS 4, maintenance expenses are treated as follows:\n\n" +
				"1. Major repairs and ordinary maintenance are the lessor's responsibility and are expensed when incurred.\n" +
				"2. If the lessee undertakes maintenance under the lease, the lessor estimates the expected cost and allocates part of the rental to it.\n" +
				"3. If maintenance is contractually the lessee's responsibility, the lessee bears and recognizes it.",
			Sender:    model.SenderSystem,
			Timestamp: ago(4),
		},
	}
}

type sample struct {
	category model.ScenarioCategory
	title    string
	question string
	tag      model.StandardTag
	answer   string
	minsAgo  int
}

var samples = []sample{
	{
		category: model.CategoryUseCase,
		title:    "Ijarah MBT Contract Analysis",
		question: "Can you explain how FAS 4 applies to Ijarah Muntahia Bittamleek contracts?",
		tag:      model.FAS4,
		answer: "Under FAS 4 the lessor keeps the leased asset on its balance sheet and depreciates it over its useful life. " +
			"Rental income is recognized on a straight-line basis.\n\nOwnership transfers to the lessee at the end of the term through:\n\n" +
			"1. Gift (Hibah)\n2. Gradual transfer during the lease term\n3. Sale for a token or other amount",
		minsAgo: 30,
	},
	{
		category: model.CategoryUseCase,
		title:    "Murabaha Sale Documentation",
		question: "What documentation is required for a Murabaha sale according to FAS 28?",
		tag:      model.FAS28,
		answer: "FAS 28 expects the following documents:\n\n1. Master Murabaha Agreement\n2. Purchase Order\n3. Promise to Purchase\n" +
			"4. Agency Agreement\n5. Sale Contract\n6. Delivery Receipt\n\nThey must disclose the cost of the goods and the agreed profit margin.",
		minsAgo: 45,
	},
	{
		category: model.CategoryReverse,
		title:    "Equity Buy-out Entry Analysis",
		question: "I have these journal entries for an equity buy-out. Which FAS standards would apply?\n\n" +
			"Dr. Investment in Subsidiary $5,000,000\nCr. Cash $5,000,000",
		answer: "The entries describe acquiring a controlling interest. The primary applicable standards are:\n\n" +
			"1. FAS 23 (Consolidation)\n2. FAS 24 (Investments in Associates)\n3. FAS 21 as the overarching framework",
		minsAgo: 120,
	},
	{
		category: model.CategoryEnhancement,
		title:    "Digital Asset Treatment Proposal",
		question: "How could FAS standards be enhanced to better address digital assets and cryptocurrencies?",
		tag:      model.FAS4,
		answer: "## Proposed enhancements\n\n- Classification framework by purpose and Shariah status\n- Fair value guidance for volatile assets\n" +
			"- Custody and ownership recognition rules\n- Zakat treatment of digital assets",
		minsAgo: 180,
	},
	{
		category: model.CategoryTeamsOwn,
		title:    "Choix Challenge Hackathon",
		question: "We're participating in the Choix Challenge Hackathon. Can you help us understand how to implement FAS standards in our fintech solution?",
		tag:      model.FAS28,
		answer: "Build the solution around:\n\n1. An API-based compliance engine\n2. Shariah-compliant smart contract templates\n" +
			"3. Automated transaction classification\n4. Reporting automation with a full audit trail",
		minsAgo: 240,
	},
}

// SampleConversations returns the demonstration conversations seeded into new sessions.
func SampleConversations(now time.Time) map[model.ScenarioCategory]map[string][]model.Message {
	out := make(map[model.ScenarioCategory]map[string][]model.Message)
	for i, s := range samples {
		if out[s.category] == nil {
			out[s.category] = make(map[string][]model.Message)
		}
		asked := now.Add(-time.Duration(s.minsAgo) * time.Minute)
		out[s.category][s.title] = []model.Message{
			{ID: fmt.Sprintf("sample-%d-1", i), Content: s.question, Sender: model.SenderUser, Timestamp: asked, Standard: s.tag},
			{ID: fmt.Sprintf("sample-%d-2", i), Content: s.answer, Sender: model.SenderSystem, Timestamp: asked.Add(time.Minute)},
		}
	}
	return out
}
