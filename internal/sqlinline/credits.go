package sqlinline

// The conditional decrement is the primary path for spending credits: a
// single statement that both checks and mutates the balance, so two
// concurrent submissions can never spend the same credits twice.
const QDebitCredits = `--sql a0893f15-6194-48f2-a09e-e73ca272f5d7
update profiles
set credits = credits - $2,
    updated_at = now()
where id = $1
  and credits >= $2
returning credits;
`

const QRefundCredits = `--sql 39f443f4-59da-4973-ad8f-c14c4e233411
update profiles
set credits = credits + $2,
    updated_at = now()
where id = $1
returning credits;
`

const QSelectCredits = `--sql bf32754b-bac4-4cf2-9b86-54b9fa75ca31
select credits from profiles where id = $1;
`

// Last-resort write used only when the atomic paths error. Racy between the
// read and this write; every use is logged loudly.
const QSetCredits = `--sql 3971b088-515e-41d4-b27d-5a99b9db539c
update profiles
set credits = $2,
    updated_at = now()
where id = $1
returning credits;
`

const QInsertTransaction = `--sql 509c9747-7dd5-4606-930d-56d31b60276c
insert into credit_transactions(id, user_id, amount, reason, metadata, created_at)
values (gen_random_uuid(), $1::uuid, $2::int, $3::text, coalesce($4::jsonb, '{}'::jsonb), now());
`
