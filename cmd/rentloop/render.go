package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"rentloop/chat"
	"rentloop/domain"
)

func printConversations(engine *chat.Engine) {
	rows := engine.Conversations()
	if len(rows) == 0 {
		fmt.Println("no conversations yet")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Last message", "At", "Unread"})
	for _, row := range rows {
		table.Append([]string{
			row.OtherUserID,
			row.LastMessage.Content,
			row.LastMessage.CreatedAt.Format(time.TimeOnly),
			fmt.Sprintf("%d", row.UnreadCount),
		})
	}
	table.Render()
	fmt.Printf("total unread: %d\n", engine.TotalUnread())
}

func printMessages(messages []domain.Message) {
	for _, m := range messages {
		marker := " "
		if m.Pending {
			marker = "~"
		}
		fmt.Printf("%s [%s] %s: %s\n",
			marker, m.CreatedAt.Format(time.TimeOnly), m.SenderID, m.Content)
	}
}

func printBookings(bookings []domain.Booking) {
	if len(bookings) == 0 {
		fmt.Println("no bookings")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Item", "Renter", "Start", "End", "Total", "Status"})
	for _, b := range bookings {
		table.Append([]string{
			b.ID,
			b.ItemID,
			b.RenterID,
			b.StartDate.Format(time.DateOnly),
			b.EndDate.Format(time.DateOnly),
			fmt.Sprintf("%.2f", b.TotalAmount),
			string(b.Status),
		})
	}
	table.Render()
}
